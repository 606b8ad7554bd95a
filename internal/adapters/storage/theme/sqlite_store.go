package theme

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parishweb/internal/adapters/storage"
	domain "parishweb/internal/domain/theme"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new SQLiteStore and ensures the table exists.
// PRE: db is a valid, open database connection
// POST: theme_preference table exists; store is ready for use
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	db.ExecContext(context.Background(), `CREATE TABLE IF NOT EXISTS theme_preference (
		visitor_id TEXT PRIMARY KEY,
		theme TEXT NOT NULL CHECK (theme IN ('dark', 'light')),
		updated_at TEXT NOT NULL
	)`)
	return &SQLiteStore{db: db}
}

// Get retrieves the preference for a visitor.
// PRE: visitorID is non-empty
// POST: returns ErrNotFound when nothing is stored
func (s *SQLiteStore) Get(ctx context.Context, visitorID string) (domain.Preference, error) {
	var (
		p       domain.Preference
		theme   string
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT visitor_id, theme, updated_at FROM theme_preference WHERE visitor_id = ?`, visitorID,
	).Scan(&p.VisitorID, &theme, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Preference{}, ErrNotFound
	}
	if err != nil {
		return domain.Preference{}, fmt.Errorf("get theme preference: %w", err)
	}
	p.Theme = domain.Parse(theme)
	p.UpdatedAt, err = time.Parse(time.RFC3339, updated)
	if err != nil {
		return domain.Preference{}, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	return p, nil
}

// Save inserts or replaces a visitor's preference.
// PRE: p.Validate() == nil
// POST: preference is persisted
func (s *SQLiteStore) Save(ctx context.Context, p domain.Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO theme_preference (visitor_id, theme, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(visitor_id) DO UPDATE SET theme=excluded.theme, updated_at=excluded.updated_at`,
		p.VisitorID, string(p.Theme), p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save theme preference: %w", err)
	}
	return nil
}
