package services

import (
	"context"
	"log/slog"

	"github.com/communityhub/platform/internal/audit"
	"github.com/communityhub/platform/internal/db/models"
	"github.com/communityhub/platform/internal/db/repositories"
	"github.com/communityhub/platform/internal/telemetry"
)

// AuditEntry describes one privileged action inside a community
type AuditEntry struct {
	TenantID   string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Reason     *string
	Metadata   map[string]interface{}
}

// Auditor records moderation log entries in the background and ships them to the
// configured audit destinations.
type Auditor struct {
	repo     *repositories.ModerationLogRepository
	shipper  audit.Shipper
	dispatch dispatcher
}

// NewAuditor creates a new Auditor. shipper may be nil.
func NewAuditor(repo *repositories.ModerationLogRepository, shipper audit.Shipper) *Auditor {
	return &Auditor{repo: repo, shipper: shipper, dispatch: detached}
}

// Sync makes Record write on the caller's goroutine.
func (a *Auditor) Sync() *Auditor {
	a.dispatch = inline
	return a
}

// Record stores e. Entries without an actor are dropped.
func (a *Auditor) Record(ctx context.Context, e AuditEntry) {
	if e.ActorID == "" {
		return
	}
	log := buildModerationLog(e)

	a.dispatch(ctx, func(ctx context.Context) {
		if err := a.repo.CreateLog(ctx, log); err != nil {
			telemetry.SideEffectFailuresTotal.WithLabelValues("audit").Inc()
			slog.Warn("failed to write moderation log", "action", e.Action, "tenant_id", e.TenantID, "error", err)
			return
		}
		if a.shipper == nil {
			return
		}
		if err := a.shipper.Ship(ctx, audit.EntryFromLog(log)); err != nil {
			telemetry.SideEffectFailuresTotal.WithLabelValues("audit_ship").Inc()
			slog.Warn("failed to ship audit entry", "action", e.Action, "tenant_id", e.TenantID, "error", err)
		}
	})
}

func buildModerationLog(e AuditEntry) *models.ModerationLog {
	metadata := make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	metadata["tenant_id"] = e.TenantID

	actor := e.ActorID
	return &models.ModerationLog{
		ActorID:    &actor,
		ActionType: e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Reason:     e.Reason,
		Metadata:   metadata,
	}
}
