package store

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

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == MemoryPath {
		// every connection would see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS results (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		occasion TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_user ON results(user_id, created_at);

	CREATE TABLE IF NOT EXISTS favorites (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		outfit_index INTEGER NOT NULL,
		outfit_name TEXT NOT NULL DEFAULT '',
		outfit_json TEXT NOT NULL DEFAULT '{}',
		original_photo TEXT NOT NULL DEFAULT '',
		occasion TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id, outfit_index)
	);
	CREATE INDEX IF NOT EXISTS idx_favorites_user ON favorites(user_id, saved_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveResult creates or replaces the result of a session.
func (s *SQLiteStore) SaveResult(ctx context.Context, r *Result) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO results (session_id, user_id, occasion, payload, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		occasion = excluded.occasion,
		payload = excluded.payload,
		created_at = excluded.created_at
	WHERE results.user_id = excluded.user_id`

	res, err := s.db.ExecContext(ctx, query,
		r.SessionID, r.UserID, r.Occasion, string(r.Payload), r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save result: session %s belongs to another user", r.SessionID)
	}

	return nil
}

// GetResult returns the result of a session owned by userID.
func (s *SQLiteStore) GetResult(ctx context.Context, userID, sessionID string) (*Result, error) {
	query := `
		SELECT session_id, user_id, occasion, payload, created_at
		FROM results WHERE session_id = ? AND user_id = ?`

	r, err := scanResult(s.db.QueryRowContext(ctx, query, sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan result row: %w", err)
	}

	return r, nil
}

// ListResults returns the results of a user, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, userID string) ([]*Result, error) {
	query := `
		SELECT session_id, user_id, occasion, payload, created_at
		FROM results WHERE user_id = ?
		ORDER BY created_at DESC, session_id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return out, nil
}

// DeleteSession removes a session result together with its favourites.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE session_id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("delete result: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE session_id = ? AND user_id = ?`, sessionID, userID); err != nil {
		return false, fmt.Errorf("delete favorites: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return rows > 0, nil
}

// AddFavorite saves an outfit. Adding an existing favourite is a no-op.
func (s *SQLiteStore) AddFavorite(ctx context.Context, f *Favorite) error {
	if f.SavedAt.IsZero() {
		f.SavedAt = time.Now()
	}

	outfit := string(f.Outfit)
	if outfit == "" {
		outfit = "{}"
	}

	query := `
	INSERT INTO favorites (user_id, session_id, outfit_index, outfit_name, outfit_json,
		original_photo, occasion, image_url, saved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, session_id, outfit_index) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		f.UserID, f.SessionID, f.OutfitIndex, f.OutfitName, outfit,
		f.OriginalPhoto, f.Occasion, f.ImageURL, f.SavedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a favourite if present.
func (s *SQLiteStore) RemoveFavorite(ctx context.Context, userID, sessionID string, outfitIndex int) error {
	query := `DELETE FROM favorites WHERE user_id = ? AND session_id = ? AND outfit_index = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, sessionID, outfitIndex); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns the favourites of a user in the order they were saved.
func (s *SQLiteStore) ListFavorites(ctx context.Context, userID string) ([]*Favorite, error) {
	query := `
		SELECT user_id, session_id, outfit_index, outfit_name, outfit_json,
		       original_photo, occasion, image_url, saved_at
		FROM favorites WHERE user_id = ?
		ORDER BY saved_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Favorite
	for rows.Next() {
		var f Favorite
		var outfit string
		var savedAt int64

		if err := rows.Scan(
			&f.UserID, &f.SessionID, &f.OutfitIndex, &f.OutfitName, &outfit,
			&f.OriginalPhoto, &f.Occasion, &f.ImageURL, &savedAt,
		); err != nil {
			return nil, fmt.Errorf("scan favorite row: %w", err)
		}

		f.Outfit = []byte(outfit)
		f.SavedAt = time.UnixMilli(savedAt)
		out = append(out, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	return out, nil
}

// IsFavorite reports whether an outfit is saved.
func (s *SQLiteStore) IsFavorite(ctx context.Context, userID, sessionID string, outfitIndex int) (bool, error) {
	query := `SELECT 1 FROM favorites WHERE user_id = ? AND session_id = ? AND outfit_index = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, userID, sessionID, outfitIndex).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}

	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*Result, error) {
	var r Result
	var payload string
	var createdAt int64

	if err := row.Scan(&r.SessionID, &r.UserID, &r.Occasion, &payload, &createdAt); err != nil {
		return nil, err
	}

	r.Payload = []byte(payload)
	r.CreatedAt = time.UnixMilli(createdAt)

	return &r, nil
}

var _ Repository = (*SQLiteStore)(nil)
