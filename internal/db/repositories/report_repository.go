// report_repository.go implements ReportRepository for member reports awaiting moderation.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/internal/db/models"
)

// ReportRepository handles forum_reports rows
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

const reportColumns = `id, tenant_id, reporter_id, target_type, target_id, reason, status, created_at, resolved_at, resolved_by`

func scanReport(s scanner) (*models.ForumReport, error) {
	rp := &models.ForumReport{}
	err := s.Scan(&rp.ID, &rp.TenantID, &rp.ReporterID, &rp.TargetType, &rp.TargetID, &rp.Reason,
		&rp.Status, &rp.CreatedAt, &rp.ResolvedAt, &rp.ResolvedBy)
	return rp, err
}

// CreateReport files a new pending report
func (r *ReportRepository) CreateReport(ctx context.Context, rp *models.ForumReport) error {
	rp.ID = uuid.New().String()
	rp.Status = models.ReportStatusPending
	rp.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO forum_reports (id, tenant_id, reporter_id, target_type, target_id, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rp.ID, rp.TenantID, rp.ReporterID, rp.TargetType, rp.TargetID, rp.Reason, rp.Status, rp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// ListReports returns the community's reports, optionally filtered by status, newest first
func (r *ReportRepository) ListReports(ctx context.Context, tenantID, status string, limit, offset int) ([]models.ForumReport, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM forum_reports
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
	`, tenantID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM forum_reports
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, tenantID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := []models.ForumReport{}
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *rp)
	}
	return reports, total, rows.Err()
}

// ResolveReport moves a report to status, recording who handled it
func (r *ReportRepository) ResolveReport(ctx context.Context, tenantID, id, status, resolverID string) (*models.ForumReport, error) {
	rp, err := scanReport(r.db.QueryRowContext(ctx, `
		UPDATE forum_reports
		SET status = $3, resolved_at = $4, resolved_by = $5
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+reportColumns,
		id, tenantID, status, time.Now(), resolverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve report: %w", err)
	}
	return rp, nil
}
