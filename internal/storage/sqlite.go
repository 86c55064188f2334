// Package storage persists historical posts, templates and generation
// history in SQLite, and writes config files atomically.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/template"
	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("not found")

const schemaVersion = 1

// Store is the SQLite-backed post and template store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every new connection to ":memory:" would see an empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		published_at INTEGER,
		likes INTEGER NOT NULL DEFAULT 0,
		comments INTEGER NOT NULL DEFAULT 0,
		shares INTEGER NOT NULL DEFAULT 0,
		impressions INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at);

	CREATE TABLE IF NOT EXISTS templates (
		name TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		variables TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		raw_idea TEXT NOT NULL,
		text TEXT NOT NULL,
		model TEXT,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion)
	return err
}

// SavePosts inserts posts in one transaction and returns how many were stored.
func (s *Store) SavePosts(ctx context.Context, posts []types.HistoricalPost) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (content, published_at, likes, comments, shares, impressions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, p := range posts {
		var published sql.NullInt64
		if p.PublishedAt != nil {
			published = sql.NullInt64{Int64: p.PublishedAt.Unix(), Valid: true}
		}
		var e types.Engagement
		if p.Engagement != nil {
			e = *p.Engagement
		}
		if _, err := stmt.ExecContext(ctx, p.Content, published, e.Likes, e.Comments, e.Shares, e.Impressions, now); err != nil {
			return 0, fmt.Errorf("failed to insert post %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(posts), nil
}

// ListPosts returns up to limit posts, most recently published first. Posts
// without a publication date come last. A limit of zero returns all posts.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]types.HistoricalPost, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, published_at, likes, comments, shares, impressions
		FROM posts
		ORDER BY published_at IS NULL, published_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []types.HistoricalPost{}
	for rows.Next() {
		var p types.HistoricalPost
		var published sql.NullInt64
		var e types.Engagement
		if err := rows.Scan(&p.Content, &published, &e.Likes, &e.Comments, &e.Shares, &e.Impressions); err != nil {
			return nil, err
		}
		if published.Valid {
			t := time.Unix(published.Int64, 0).UTC()
			p.PublishedAt = &t
		}
		if !e.IsZero() {
			p.Engagement = &e
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts returns the number of stored posts.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n)
	return n, err
}

// SaveTemplate validates def and inserts or replaces it by name.
func (s *Store) SaveTemplate(ctx context.Context, def types.TemplateDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: template name is required", types.ErrValidation)
	}
	if err := template.Validate(def); err != nil {
		return err
	}

	vars := def.Variables
	if vars == nil {
		vars = []types.VariableSpec{}
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO templates (name, content, variables, updated_at)
		VALUES (?, ?, ?, ?)
	`, def.Name, def.Content, string(encoded), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save template %q: %w", def.Name, err)
	}
	return nil
}

// GetTemplate returns the template called name, or ErrNotFound.
func (s *Store) GetTemplate(ctx context.Context, name string) (*types.TemplateDefinition, error) {
	var def types.TemplateDefinition
	var vars string
	err := s.db.QueryRowContext(ctx,
		"SELECT name, content, variables FROM templates WHERE name = ?", name,
	).Scan(&def.Name, &def.Content, &vars)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(vars), &def.Variables); err != nil {
		return nil, fmt.Errorf("decode variables of %q: %w", name, err)
	}
	return &def, nil
}

// ListTemplates returns every template ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]types.TemplateDefinition, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, content, variables FROM templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	defs := []types.TemplateDefinition{}
	for rows.Next() {
		var def types.TemplateDefinition
		var vars string
		if err := rows.Scan(&def.Name, &def.Content, &vars); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vars), &def.Variables); err != nil {
			return nil, fmt.Errorf("decode variables of %q: %w", def.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// DeleteTemplate removes the template called name, or returns ErrNotFound.
func (s *Store) DeleteTemplate(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	return nil
}

// GenerationRecord is one stored generation result.
type GenerationRecord struct {
	ID        int64
	Kind      string
	RawIdea   string
	Result    types.GenerationResult
	CreatedAt time.Time
}

// SaveGeneration appends a result to the generation history.
func (s *Store) SaveGeneration(ctx context.Context, kind, rawIdea string, result types.GenerationResult) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (kind, raw_idea, text, model, prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, kind, rawIdea, result.Text, result.Model, result.Usage.PromptTokens, result.Usage.CompletionTokens, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("save generation: %w", err)
	}
	return res.LastInsertId()
}

// RecentGenerations returns up to limit records, newest first.
func (s *Store) RecentGenerations(ctx context.Context, limit int) ([]GenerationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, raw_idea, text, model, prompt_tokens, completion_tokens, created_at
		FROM generations
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var records []GenerationRecord
	for rows.Next() {
		var r GenerationRecord
		var model sql.NullString
		var created int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.RawIdea, &r.Result.Text, &model,
			&r.Result.Usage.PromptTokens, &r.Result.Usage.CompletionTokens, &created); err != nil {
			return nil, err
		}
		r.Result.Model = model.String
		r.Result.Usage.TotalTokens = r.Result.Usage.PromptTokens + r.Result.Usage.CompletionTokens
		r.CreatedAt = time.Unix(created, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
