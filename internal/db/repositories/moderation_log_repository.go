// moderation_log_repository.go implements ModerationLogRepository: the append-only record
// of privileged actions. Entries are community-scoped through metadata->>'tenant_id'.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/db/models"
)

// ModerationLogRepository handles moderation_logs rows
type ModerationLogRepository struct {
	db *sql.DB
}

// NewModerationLogRepository creates a new ModerationLogRepository
func NewModerationLogRepository(db *sql.DB) *ModerationLogRepository {
	return &ModerationLogRepository{db: db}
}

// ModerationLogFilters narrows ListByTenant
type ModerationLogFilters struct {
	ActionType *string
	ActorID    *string
}

// CreateLog appends an entry
func (r *ModerationLogRepository) CreateLog(ctx context.Context, log *models.ModerationLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now()

	metadataJSON, err := marshalJSONB(log.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO moderation_logs (id, actor_id, action_type, target_type, target_id, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, log.ID, log.ActorID, log.ActionType, log.TargetType, log.TargetID, log.Reason, metadataJSON, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create moderation log: %w", err)
	}
	return nil
}

// ListByTenant returns the community's entries, newest first, with the filtered total
func (r *ModerationLogRepository) ListByTenant(ctx context.Context, tenantID string, filters ModerationLogFilters, limit, offset int) ([]models.ModerationLog, int, error) {
	where := ` WHERE metadata->>'tenant_id' = $1`
	args := []interface{}{tenantID}
	paramIndex := 2

	if filters.ActionType != nil {
		where += fmt.Sprintf(` AND action_type = $%d`, paramIndex)
		args = append(args, *filters.ActionType)
		paramIndex++
	}
	if filters.ActorID != nil {
		where += fmt.Sprintf(` AND actor_id = $%d`, paramIndex)
		args = append(args, *filters.ActorID)
		paramIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moderation_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count moderation logs: %w", err)
	}

	query := `SELECT id, actor_id, action_type, target_type, target_id, reason, metadata, created_at
		FROM moderation_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list moderation logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ModerationLog{}
	for rows.Next() {
		var log models.ModerationLog
		var metadataJSON []byte
		if err := rows.Scan(&log.ID, &log.ActorID, &log.ActionType, &log.TargetType, &log.TargetID,
			&log.Reason, &metadataJSON, &log.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan moderation log: %w", err)
		}
		if log.Metadata, err = unmarshalJSONB(metadataJSON); err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	return logs, total, rows.Err()
}
