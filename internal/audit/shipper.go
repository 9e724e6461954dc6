// Package audit ships moderation log entries to destinations outside the database
// (an HTTP webhook such as a SIEM collector, or a JSON-lines file). The database row in
// moderation_logs is the source of truth; shipping is a best-effort copy.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/db/models"
)

// LogEntry is the wire shape of a shipped moderation log entry
type LogEntry struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id,omitempty"`
	TenantID   string                 `json:"tenant_id,omitempty"`
	TargetType string                 `json:"target_type,omitempty"`
	TargetID   string                 `json:"target_id,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EntryFromLog converts a stored moderation log row into a shippable entry
func EntryFromLog(log *models.ModerationLog) *LogEntry {
	e := &LogEntry{
		ID:         log.ID,
		Timestamp:  log.CreatedAt,
		Action:     log.ActionType,
		TargetType: log.TargetType,
		TargetID:   log.TargetID,
		Metadata:   log.Metadata,
	}
	if log.ActorID != nil {
		e.ActorID = *log.ActorID
	}
	if log.Reason != nil {
		e.Reason = *log.Reason
	}
	if tid, ok := log.Metadata["tenant_id"].(string); ok {
		e.TenantID = tid
	}
	return e
}

// Shipper defines the interface for audit log shipping
type Shipper interface {
	// Ship sends an audit log entry to the destination
	Ship(ctx context.Context, entry *LogEntry) error
	// Close flushes and releases any resources
	Close() error
}

// MultiShipper ships to multiple destinations
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper builds the enabled shippers of cfg. A disabled audit section yields
// an empty shipper that accepts and drops every entry.
func NewMultiShipper(cfg config.AuditConfig) (*MultiShipper, error) {
	ms := &MultiShipper{shippers: make([]Shipper, 0)}
	if !cfg.Enabled {
		return ms, nil
	}

	for i, sc := range cfg.Shippers {
		if !sc.Enabled {
			continue
		}

		var shipper Shipper
		var err error
		switch sc.Type {
		case "webhook":
			if sc.Webhook == nil {
				return nil, fmt.Errorf("audit shipper %d: webhook config is required", i)
			}
			shipper, err = NewWebhookShipper(webhookSettings(sc.Webhook))
		case "file":
			if sc.File == nil {
				return nil, fmt.Errorf("audit shipper %d: file config is required", i)
			}
			shipper, err = NewFileShipper(FileSettings{
				Path:       sc.File.Path,
				MaxSizeMB:  sc.File.MaxSizeMB,
				MaxBackups: sc.File.MaxBackups,
			})
		default:
			return nil, fmt.Errorf("audit shipper %d: unknown type %q", i, sc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create %s shipper: %w", sc.Type, err)
		}
		ms.shippers = append(ms.shippers, shipper)
	}
	return ms, nil
}

func webhookSettings(c *config.AuditWebhookConfig) WebhookSettings {
	return WebhookSettings{
		URL:           c.URL,
		Headers:       c.Headers,
		Timeout:       time.Duration(c.TimeoutSecs) * time.Second,
		BatchSize:     c.BatchSize,
		FlushInterval: time.Duration(c.FlushInterval) * time.Second,
	}
}

// Len reports how many destinations are active
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends an entry to every destination. All destinations are attempted;
// the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Debug("audit destination failed", "action", entry.Action, "error", err)
		}
	}
	return lastErr
}

// Close closes all shippers
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	ms.shippers = nil
	return lastErr
}
