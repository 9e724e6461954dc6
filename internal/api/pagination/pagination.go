// Package pagination parses page/limit query parameters for list endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/communityhub/platform/internal/api/apierror"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is a validated page request
type Page struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
	Offset int `json:"-"`
}

// Parse reads ?page and ?limit. Missing values take the defaults; anything that is
// not a positive integer, or a limit above max, is a validation error.
func Parse(c *gin.Context, defaultLimit, max int) (Page, error) {
	fields := map[string][]string{}

	page, ok := positiveInt(c.Query("page"), 1)
	if !ok {
		fields["page"] = []string{"must be a positive integer"}
	}
	limit, ok := positiveInt(c.Query("limit"), defaultLimit)
	if !ok || limit > max {
		fields["limit"] = []string{"must be between 1 and " + strconv.Itoa(max)}
	}
	if len(fields) > 0 {
		return Page{}, apierror.Validation(fields)
	}
	return Page{Page: page, Limit: limit, Offset: (page - 1) * limit}, nil
}

// Default is Parse with the usual 10 / 100 bounds
func Default(c *gin.Context) (Page, error) {
	return Parse(c, DefaultLimit, MaxLimit)
}

// WithTotal returns p with the total row count filled in
func (p Page) WithTotal(total int) Page {
	p.Total = total
	return p
}

func positiveInt(raw string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
