// Package activity provides the append-only activity log consumed by the
// admin dashboard.
package activity

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Event is one audit record.
type Event struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"-"`
	Username    string    `json:"username"`
	EventType   string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"date"`
}

// Repository handles activity-log database operations. Append-only: there
// are no update or delete methods.
type Repository struct {
	ledgerDB *sql.DB // ledger.db - activity_log table
	log      zerolog.Logger
}

// NewRepository creates a new activity repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "activity").Logger(),
	}
}

// Append inserts one audit record.
func (r *Repository) Append(userID, username, eventType, description string) error {
	_, err := r.ledgerDB.Exec(
		"INSERT INTO activity_log (user_id, username, event_type, description, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, username, eventType, description, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}
	return nil
}

// Recent returns the newest events, most recent first.
func (r *Repository) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.ledgerDB.Query(
		"SELECT id, user_id, username, event_type, description, created_at FROM activity_log ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAtUnix int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.EventType, &e.Description, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity log: %w", err)
	}

	return events, nil
}
