// Package repo persists users, dialog turn logs, and classifier training
// samples in Postgres.
package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository wraps the shared connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// User is a known dialog participant.
type User struct {
	ID          string
	ExternalID  string
	DisplayName *string
}

// UserProfile carries upsert input for a participant.
type UserProfile struct {
	ExternalID  string
	DisplayName *string
}

// UpsertUser creates or refreshes a user row keyed by external id.
func (r *Repository) UpsertUser(ctx context.Context, profile UserProfile) (*User, error) {
	const q = `
		INSERT INTO users (external_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = COALESCE(EXCLUDED.display_name, users.display_name)
		RETURNING id, external_id, display_name`

	var u User
	if err := r.pool.QueryRow(ctx, q, profile.ExternalID, profile.DisplayName).
		Scan(&u.ID, &u.ExternalID, &u.DisplayName); err != nil {
		return nil, fmt.Errorf("upsert user %q: %w", profile.ExternalID, err)
	}
	return &u, nil
}

// MessageRecord is one logged dialog message.
type MessageRecord struct {
	UserID    string
	Direction string // incoming | outgoing
	Type      string
	Content   *string
}

// InsertMessage appends a dialog message to the turn log.
func (r *Repository) InsertMessage(ctx context.Context, rec MessageRecord) error {
	const q = `
		INSERT INTO messages (user_id, direction, type, content)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, q, rec.UserID, rec.Direction, rec.Type, rec.Content); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// TrainingSample is a labeled utterance collected for a classifier slot.
type TrainingSample struct {
	SlotID string
	Text   string
	Label  bool
}

// InsertTrainingSample stores a labeled utterance for later retraining.
func (r *Repository) InsertTrainingSample(ctx context.Context, sample TrainingSample) error {
	if strings.TrimSpace(sample.SlotID) == "" {
		return fmt.Errorf("training sample missing slot id")
	}
	const q = `
		INSERT INTO training_samples (slot_id, text, label)
		VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, q, sample.SlotID, sample.Text, sample.Label); err != nil {
		return fmt.Errorf("insert training sample: %w", err)
	}
	return nil
}

// ListTrainingSamples returns all labeled utterances for a slot.
func (r *Repository) ListTrainingSamples(ctx context.Context, slotID string) ([]TrainingSample, error) {
	const q = `SELECT slot_id, text, label FROM training_samples WHERE slot_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, q, slotID)
	if err != nil {
		return nil, fmt.Errorf("list training samples: %w", err)
	}
	defer rows.Close()

	var out []TrainingSample
	for rows.Next() {
		var s TrainingSample
		if err := rows.Scan(&s.SlotID, &s.Text, &s.Label); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}
