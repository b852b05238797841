package runstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/davebot/dave/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// DBPath returns the conventional database location for a repository root.
func DBPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".dave", "dave.db")
}

// NewSQLiteStore opens (or creates) a run database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's connection pool, preventing
	// "database is locked" errors from the approval server's handlers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// NewRunID generates a ULID string: millisecond timestamp plus random
// suffix, lexically sortable by creation time.
func NewRunID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, state *models.RunState) error {
	if state.ID == "" {
		state.ID = NewRunID()
	}
	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	planJSON, err := marshalNullable(state.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	completed, err := json.Marshal(emptyIfNil(state.CompletedFiles))
	if err != nil {
		return fmt.Errorf("encode completed files: %w", err)
	}
	cache, err := json.Marshal(state.ContentCache)
	if err != nil {
		return fmt.Errorf("encode content cache: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, task, original_branch, plan, completed_files, content_cache, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task = excluded.task,
			original_branch = excluded.original_branch,
			plan = excluded.plan,
			completed_files = excluded.completed_files,
			content_cache = excluded.content_cache,
			updated_at = excluded.updated_at`,
		state.ID, state.Task, state.OriginalBranch, planJSON,
		string(completed), string(cache), state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*models.RunState, error) {
	state := &models.RunState{}
	var planJSON sql.NullString
	var completed, cache string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, task, original_branch, plan, completed_files, content_cache, created_at, updated_at
		FROM runs WHERE id = ?`, id,
	).Scan(&state.ID, &state.Task, &state.OriginalBranch, &planJSON,
		&completed, &cache, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	if planJSON.Valid && planJSON.String != "" {
		state.Plan = &models.Plan{}
		if err := json.Unmarshal([]byte(planJSON.String), state.Plan); err != nil {
			// A corrupt snapshot is unrecoverable; report it as missing
			// rather than raising into the orchestrator's control flow.
			return nil, ErrNotFound
		}
	}
	if err := json.Unmarshal([]byte(completed), &state.CompletedFiles); err != nil {
		return nil, ErrNotFound
	}
	if err := json.Unmarshal([]byte(cache), &state.ContentCache); err != nil {
		return nil, ErrNotFound
	}
	return state, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, plan, completed_files, created_at, updated_at
		FROM runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []*models.RunSummary
	for rows.Next() {
		sum := &models.RunSummary{}
		var planJSON sql.NullString
		var completed string
		if err := rows.Scan(&sum.ID, &sum.Task, &planJSON, &completed,
			&sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		var completedFiles []string
		_ = json.Unmarshal([]byte(completed), &completedFiles)
		sum.CompletedCount = len(completedFiles)

		if planJSON.Valid && planJSON.String != "" {
			var p models.Plan
			if err := json.Unmarshal([]byte(planJSON.String), &p); err == nil {
				sum.BranchName = p.BranchName
				sum.PlannedCount = len(p.GenerationOrder)
			}
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return summaries, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalNullable(p *models.Plan) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func emptyIfNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
