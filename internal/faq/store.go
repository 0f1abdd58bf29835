// Package faq provides the FAQ lookup service consumed by the dialog
// orchestrator: a sqlite-backed question store with fuzzy best-match
// scoring over stored questions.
package faq

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	_ "modernc.org/sqlite"

	"bankbot/internal/metrics"
)

const defaultThreshold = 80

// Entry is a stored question/answer pair.
type Entry struct {
	Question string
	Answer   string
}

// Store answers FAQ lookups from a sqlite database.
type Store struct {
	db        *sql.DB
	threshold int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Open opens (and if needed initializes) the FAQ database at path.
func Open(path string, m *metrics.Metrics, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open faq db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS faq_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init faq schema: %w", err)
	}
	return &Store{
		db:        db,
		threshold: defaultThreshold,
		logger:    logger.With("component", "faq"),
		metrics:   m,
	}, nil
}

// Add stores one question/answer pair.
func (s *Store) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO faq_entries (question, answer) VALUES (?, ?)`, e.Question, e.Answer)
	if err != nil {
		return fmt.Errorf("insert faq entry: %w", err)
	}
	return nil
}

// Seed loads entries in one transaction, typically at startup.
func (s *Store) Seed(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin faq seed: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO faq_entries (question, answer) VALUES (?, ?)`, e.Question, e.Answer); err != nil {
			tx.Rollback()
			return fmt.Errorf("seed faq entry: %w", err)
		}
	}
	return tx.Commit()
}

// Lookup fuzzy-scores the utterance against every stored question and
// returns the best answer when it clears the threshold. found is false on a
// miss; errors are reserved for storage failures.
func (s *Store) Lookup(ctx context.Context, utterance string) (answer string, found bool, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question, answer FROM faq_entries ORDER BY id`)
	if err != nil {
		return "", false, fmt.Errorf("query faq entries: %w", err)
	}
	defer rows.Close()

	bestScore := 0
	bestAnswer := ""
	for rows.Next() {
		var q, a string
		if err := rows.Scan(&q, &a); err != nil {
			return "", false, fmt.Errorf("scan faq entry: %w", err)
		}
		if score := fuzzy.PartialRatio(q, utterance); score > bestScore {
			bestScore = score
			bestAnswer = a
		}
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("iterate faq entries: %w", err)
	}

	if bestScore < s.threshold {
		s.countLookup("miss")
		return "", false, nil
	}
	s.countLookup("hit")
	return bestAnswer, true, nil
}

func (s *Store) countLookup(outcome string) {
	if s.metrics != nil {
		s.metrics.FAQLookups.WithLabelValues(outcome).Inc()
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
