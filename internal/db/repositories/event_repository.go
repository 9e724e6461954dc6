// event_repository.go implements EventRepository for community events and their
// registrations. Registration locks the event row so capacity holds under concurrency.
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

// ErrEventFull is returned when an event has no seats left
var ErrEventFull = errors.New("event is full")

// EventRepository handles events and event_registrations rows
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventSelect = `
	SELECT e.id, e.tenant_id, e.title, e.category, e.description, e.location, e.event_date,
	       e.capacity, e.created_at, e.updated_at,
	       (SELECT COUNT(*) FROM event_registrations r
	        WHERE r.event_id = e.id AND r.status <> 'cancelled') AS registered_count
	FROM events e`

func scanEvent(s scanner) (*models.Event, error) {
	e := &models.Event{}
	err := s.Scan(&e.ID, &e.TenantID, &e.Title, &e.Category, &e.Description, &e.Location, &e.EventDate,
		&e.Capacity, &e.CreatedAt, &e.UpdatedAt, &e.RegisteredCount)
	return e, err
}

// ListEvents returns the community's events, latest event date first
func (r *EventRepository) ListEvents(ctx context.Context, tenantID string) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, eventSelect+`
		WHERE e.tenant_id = $1
		ORDER BY COALESCE(e.event_date, e.created_at) DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetEvent retrieves an event of the community
func (r *EventRepository) GetEvent(ctx context.Context, tenantID, id string) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, eventSelect+`
		WHERE e.id = $1 AND e.tenant_id = $2`, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// CreateEvent inserts an event
func (r *EventRepository) CreateEvent(ctx context.Context, e *models.Event) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, tenant_id, title, category, description, location, event_date, capacity,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.TenantID, e.Title, e.Category, e.Description, e.Location, e.EventDate, e.Capacity,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// UpdateEvent writes every editable column of e
func (r *EventRepository) UpdateEvent(ctx context.Context, e *models.Event) error {
	e.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE events SET title = $3, category = $4, description = $5, location = $6,
		       event_date = $7, capacity = $8, updated_at = $9
		WHERE id = $1 AND tenant_id = $2
	`, e.ID, e.TenantID, e.Title, e.Category, e.Description, e.Location, e.EventDate, e.Capacity, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// DeleteEvent removes an event and its registrations
func (r *EventRepository) DeleteEvent(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	return rowsAffected(res)
}

// Register signs the user up for the event. An existing registration is returned
// unchanged with created=false; a full event yields ErrEventFull.
func (r *EventRepository) Register(ctx context.Context, eventID string, reg *models.EventRegistration) (created bool, err error) {
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		var capacity sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity); err != nil {
			return fmt.Errorf("failed to lock event: %w", err)
		}

		existing := tx.QueryRowContext(ctx, `
			SELECT id, status, created_at FROM event_registrations
			WHERE event_id = $1 AND user_id = $2
		`, eventID, reg.UserID)
		switch err := existing.Scan(&reg.ID, &reg.Status, &reg.CreatedAt); {
		case err == nil:
			reg.EventID = eventID
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check registration: %w", err)
		}

		if capacity.Valid {
			var taken int64
			if err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM event_registrations
				WHERE event_id = $1 AND status <> 'cancelled'
			`, eventID).Scan(&taken); err != nil {
				return fmt.Errorf("failed to count registrations: %w", err)
			}
			if taken >= capacity.Int64 {
				return ErrEventFull
			}
		}

		reg.ID = uuid.New().String()
		reg.EventID = eventID
		reg.Status = "registered"
		reg.CreatedAt = time.Now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_registrations (id, event_id, user_id, name, email, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, reg.ID, reg.EventID, reg.UserID, reg.Name, reg.Email, reg.Status, reg.CreatedAt); err != nil {
			return fmt.Errorf("failed to create registration: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// ListRegistrations returns the sign-ups of an event in registration order
func (r *EventRepository) ListRegistrations(ctx context.Context, eventID string) ([]models.EventRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, name, email, status, created_at
		FROM event_registrations
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := []models.EventRegistration{}
	for rows.Next() {
		var g models.EventRegistration
		if err := rows.Scan(&g.ID, &g.EventID, &g.UserID, &g.Name, &g.Email, &g.Status, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, g)
	}
	return regs, rows.Err()
}
