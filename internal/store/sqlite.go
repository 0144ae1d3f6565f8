package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ObiAU/noticecrawler/internal/models"
)

// SQLiteStore keeps notices in a sqlite database. Its meta table doubles as the
// key/value backend of the progress tracker.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	// Concurrent readers wait on the write lock instead of failing.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS notices (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  link TEXT NOT NULL,
  published_at TEXT NOT NULL,
  category TEXT NOT NULL,
  body TEXT NOT NULL,
  image_urls TEXT NOT NULL DEFAULT '[]',
  attachments TEXT NOT NULL DEFAULT '[]',
  application_start TEXT,
  application_end TEXT,
  saved_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_notices_application_end
ON notices(application_end);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) Save(ctx context.Context, n models.Notice) (bool, error) {
	images, err := jsonList(n.ImageURLs)
	if err != nil {
		return false, err
	}
	attachments, err := jsonList(n.Attachments)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO notices (id, title, link, published_at, category, body, image_urls, attachments, application_start, application_end, saved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		n.ID, n.Title, n.Link, n.PublishedAt, n.Category, n.Body, images, attachments,
		nullable(n.ApplicationStart), nullable(n.ApplicationEnd), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert notice %s: %w", n.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notice %s: %w", n.ID, err)
	}
	return affected > 0, nil
}

// Notice loads a stored notice by id.
func (s *SQLiteStore) Notice(ctx context.Context, id string) (models.Notice, bool, error) {
	var (
		n                   models.Notice
		images, attachments string
		start, end          sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, title, link, published_at, category, body, image_urls, attachments, application_start, application_end
FROM notices WHERE id = ?;`, id).Scan(
		&n.ID, &n.Title, &n.Link, &n.PublishedAt, &n.Category, &n.Body, &images, &attachments, &start, &end,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notice{}, false, nil
	}
	if err != nil {
		return models.Notice{}, false, fmt.Errorf("load notice %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(images), &n.ImageURLs); err != nil {
		return models.Notice{}, false, fmt.Errorf("decode image urls of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(attachments), &n.Attachments); err != nil {
		return models.Notice{}, false, fmt.Errorf("decode attachments of %s: %w", id, err)
	}
	n.ApplicationStart = start.String
	n.ApplicationEnd = end.String

	return n, true, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notices;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notices: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, value != "", nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?;`, key); err != nil {
		return fmt.Errorf("delete meta %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func jsonList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
