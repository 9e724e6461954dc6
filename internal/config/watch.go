package config

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-reads the config file whenever it changes on disk and hands the
// freshly validated configuration to the registered callback. A change that
// fails validation is logged and ignored; the previous configuration stays active.
type Watcher struct {
	mu      sync.RWMutex
	current *Config
}

// Current returns the most recently applied configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch loads the configuration at configPath and starts watching it. onChange
// runs on the fsnotify goroutine after every successful reload. When no config
// file is in use there is nothing to watch and only the initial load happens.
func Watch(configPath string, onChange func(old, updated *Config)) (*Watcher, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	w := &Watcher{current: cfg}
	if v.ConfigFileUsed() == "" {
		return w, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		updated, err := decode(v)
		if err != nil {
			slog.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		w.mu.Lock()
		old := w.current
		w.current = updated
		w.mu.Unlock()

		slog.Info("configuration reloaded", "file", e.Name)
		if onChange != nil {
			onChange(old, updated)
		}
	})
	v.WatchConfig()
	return w, nil
}

// RestartRequired lists the settings that differ between old and updated but
// only take effect after a restart.
func RestartRequired(old, updated *Config) []string {
	var keys []string
	if old.Server.GetAddress() != updated.Server.GetAddress() {
		keys = append(keys, "server")
	}
	if old.Database.GetDSN() != updated.Database.GetDSN() {
		keys = append(keys, "database")
	}
	if old.Storage.DefaultBackend != updated.Storage.DefaultBackend {
		keys = append(keys, "storage.default_backend")
	}
	if old.Redis != updated.Redis {
		keys = append(keys, "redis")
	}
	if old.Telemetry.Metrics.PrometheusPort != updated.Telemetry.Metrics.PrometheusPort {
		keys = append(keys, "telemetry.metrics.prometheus_port")
	}
	return keys
}
