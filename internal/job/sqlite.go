package job

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository persists jobs in a single SQLite file.
// Jobs left IN_QUEUE or RUNNING by a previous process are marked FAILED on open.
type SQLiteRepository struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database at dbPath and applies migrations.
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	r := &SQLiteRepository{conn: conn, logger: logger}

	if err := r.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if n, err := r.markInterruptedJobs(); err != nil {
		logger.Warn("failed to mark interrupted jobs", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("marked interrupted jobs as failed", slog.Int64("count", n))
	}

	return r, nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

func (r *SQLiteRepository) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}

		name := m.Name()
		if r.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if _, err := r.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}

		if _, err := r.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}

		r.logger.Debug("applied migration", slog.String("name", name))
	}

	return nil
}

func (r *SQLiteRepository) isMigrationApplied(name string) bool {
	var applied int
	err := r.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (r *SQLiteRepository) markInterruptedJobs() (int64, error) {
	now := formatTime(time.Now())
	res, err := r.conn.Exec(
		`UPDATE jobs SET status = ?, error = 'interrupted by restart', updated_at = ?, completed_at = ?
		 WHERE status IN (?, ?)`,
		StatusFailed, now, now, StatusInQueue, StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Save inserts the job or replaces the stored copy.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	j := job.Clone()

	outputs, err := json.Marshal(j.Outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	urls, err := json.Marshal(j.URLs)
	if err != nil {
		return fmt.Errorf("encode urls: %w", err)
	}
	payload := string(j.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err = r.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, operation, payload, status, error, outputs, urls, push_to_s3,
		                  created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			operation = excluded.operation,
			payload = excluded.payload,
			status = excluded.status,
			error = excluded.error,
			outputs = excluded.outputs,
			urls = excluded.urls,
			push_to_s3 = excluded.push_to_s3,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		j.ID, j.Operation, payload, j.Status, j.Error, string(outputs), string(urls), j.PushToS3,
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt), formatTime(j.StartedAt), formatTime(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

const selectJobs = `SELECT id, operation, payload, status, error, outputs, urls, push_to_s3,
	created_at, updated_at, started_at, completed_at FROM jobs`

// FindByID retrieves a job by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.conn.QueryRowContext(ctx, selectJobs+" WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return job, nil
}

// List returns all jobs ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.conn.QueryContext(ctx, selectJobs+" ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]*Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return result, nil
}

// Delete removes a job from storage.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j                                    Job
		op, status, payload, outputs, urls   string
		created, updated, started, completed string
	)
	if err := row.Scan(&j.ID, &op, &payload, &status, &j.Error, &outputs, &urls, &j.PushToS3,
		&created, &updated, &started, &completed); err != nil {
		return nil, err
	}

	j.Operation = Operation(op)
	j.Status = Status(status)
	j.Payload = json.RawMessage(payload)
	if err := json.Unmarshal([]byte(outputs), &j.Outputs); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(urls), &j.URLs); err != nil {
		return nil, fmt.Errorf("decode urls: %w", err)
	}
	j.CreatedAt = parseTime(created)
	j.UpdatedAt = parseTime(updated)
	j.StartedAt = parseTime(started)
	j.CompletedAt = parseTime(completed)

	return &j, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime stores the zero time as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
