package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Sudharshanj25/bugtracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single connection
	// serializes all DB access through Go's connection pool, preventing
	// "database is locked" errors from concurrent HTTP requests.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys so attachment rows cascade with their issue
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
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
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
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

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateIssue inserts the issue and its attachment rows, assigning the
// auto-incremented id and creation time.
func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	issue.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO issues (track, summary, description, raised_by, assignee, status, scenario_id, step_no, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(issue.Track), issue.Summary, issue.Description, issue.RaisedBy, issue.Assignee,
		string(issue.Status), issue.ScenarioID, issue.StepNo, issue.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("issue id: %w", err)
	}
	issue.ID = id

	for i, name := range issue.Attachments {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO issue_attachments (issue_id, filename, position) VALUES (?, ?, ?)",
			id, name, i); err != nil {
			return fmt.Errorf("create attachment row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	if issue.Attachments == nil {
		issue.Attachments = []string{}
	}
	return nil
}

// GetIssue returns the issue with its attachments in upload order,
// or ErrNotFound.
func (s *SQLiteStore) GetIssue(ctx context.Context, id int64) (*models.Issue, error) {
	issue := &models.Issue{}
	var track, status string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, track, summary, description, raised_by, assignee, status, scenario_id, step_no, created_at
		FROM issues WHERE id = ?`, id,
	).Scan(&issue.ID, &track, &issue.Summary, &issue.Description, &issue.RaisedBy, &issue.Assignee,
		&status, &issue.ScenarioID, &issue.StepNo, &issue.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get issue %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	issue.Track = models.Track(track)
	issue.Status = models.Status(status)
	issue.CreatedAt = issue.CreatedAt.UTC()

	attachments, err := s.issueAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.Attachments = attachments
	return issue, nil
}

// ListIssues returns all issues ordered by id descending (newest first).
func (s *SQLiteStore) ListIssues(ctx context.Context) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, track, summary, description, raised_by, assignee, status, scenario_id, step_no, created_at
		FROM issues ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*models.Issue
	byID := make(map[int64]*models.Issue)
	for rows.Next() {
		issue := &models.Issue{Attachments: []string{}}
		var track, status string
		if err := rows.Scan(&issue.ID, &track, &issue.Summary, &issue.Description, &issue.RaisedBy, &issue.Assignee,
			&status, &issue.ScenarioID, &issue.StepNo, &issue.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Track = models.Track(track)
		issue.Status = models.Status(status)
		issue.CreatedAt = issue.CreatedAt.UTC()
		issues = append(issues, issue)
		byID[issue.ID] = issue
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// One query for all attachments instead of one per issue.
	arows, err := s.db.QueryContext(ctx,
		"SELECT issue_id, filename FROM issue_attachments ORDER BY issue_id, position")
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer func() { _ = arows.Close() }()

	for arows.Next() {
		var issueID int64
		var name string
		if err := arows.Scan(&issueID, &name); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if issue, ok := byID[issueID]; ok {
			issue.Attachments = append(issue.Attachments, name)
		}
	}
	return issues, arows.Err()
}

// UpdateIssue rewrites the issue's scalar fields. Attachments are
// managed separately via ReplaceAttachments.
func (s *SQLiteStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET track=?, summary=?, description=?, raised_by=?, assignee=?, status=?, scenario_id=?, step_no=?
		WHERE id=?`,
		string(issue.Track), issue.Summary, issue.Description, issue.RaisedBy, issue.Assignee,
		string(issue.Status), issue.ScenarioID, issue.StepNo, issue.ID,
	)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update issue %d: %w", issue.ID, ErrNotFound)
	}
	return nil
}

// ReplaceAttachments rewrites the issue's attachment list in the given order.
func (s *SQLiteStore) ReplaceAttachments(ctx context.Context, id int64, filenames []string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM issues WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("check issue: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("replace attachments %d: %w", id, ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM issue_attachments WHERE issue_id = ?", id); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}
	for i, name := range filenames {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO issue_attachments (issue_id, filename, position) VALUES (?, ?, ?)",
			id, name, i); err != nil {
			return fmt.Errorf("insert attachment row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteIssue removes the issue row; attachment rows cascade.
func (s *SQLiteStore) DeleteIssue(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("delete issue %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) issueAttachments(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT filename FROM issue_attachments WHERE issue_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
