package seenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the ledger in the stories table of a SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stories (
			story_id TEXT PRIMARY KEY,
			user_id TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Has(ctx context.Context, storyID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM stories WHERE story_id = ?`, storyID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query story %s: %w", storyID, err)
	}
	return true, nil
}

func (s *SQLiteStore) Record(ctx context.Context, storyID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO stories (story_id, user_id) VALUES (?, ?)
	`, storyID, userID)
	if err != nil {
		return fmt.Errorf("failed to record story %s: %w", storyID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]SeenStory, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT story_id, COALESCE(user_id, ''), timestamp
		FROM stories
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var stories []SeenStory
	for rows.Next() {
		var story SeenStory
		var ts string
		if err := rows.Scan(&story.StoryID, &story.UserID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		story.Timestamp = parseTimestamp(ts)
		stories = append(stories, story)
	}
	return stories, rows.Err()
}

// parseTimestamp accepts SQLite's CURRENT_TIMESTAMP text and the RFC3339
// form the driver produces for DATETIME columns
func parseTimestamp(ts string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
