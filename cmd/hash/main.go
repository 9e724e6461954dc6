// Package main prints a bcrypt hash for a password so that administrator
// accounts can be seeded straight into the users table without running the
// server. The password is read from the first argument or, when absent, from
// the first line of stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/communityhub/platform/internal/auth"
	"github.com/communityhub/platform/internal/config"
)

func main() {
	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: hash <password>  (or pipe it on stdin)")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	cost := auth.DefaultBcryptCost
	if cfg, err := config.Load(os.Getenv("CONFIG_PATH")); err == nil && cfg.Auth.BcryptCost > 0 {
		cost = cfg.Auth.BcryptCost
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
