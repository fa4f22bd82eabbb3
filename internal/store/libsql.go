package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/ivrflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Voice records ---

// ReplaceVoiceRecords swaps the cached record set atomically. Readers see
// either the old snapshot or the new one, never a partial mix.
func (s *LibSQLStore) ReplaceVoiceRecords(ctx context.Context, records []schema.VoiceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM voice_records`); err != nil {
		return fmt.Errorf("clear voice_records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO voice_records (organization, category, prompt_id, transcript, tier, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Organization, r.Category, r.PromptID, r.Transcript, r.Tier, now); err != nil {
			return fmt.Errorf("insert voice record %s: %w", r.PromptID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit voice records: %w", err)
	}
	return nil
}

func (s *LibSQLStore) ListVoiceRecords(ctx context.Context) ([]schema.VoiceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT organization, category, prompt_id, transcript, tier FROM voice_records ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []schema.VoiceRecord
	for rows.Next() {
		var r schema.VoiceRecord
		if err := rows.Scan(&r.Organization, &r.Category, &r.PromptID, &r.Transcript, &r.Tier); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *LibSQLStore) CountVoiceRecords(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM voice_records`).Scan(&count)
	return count, err
}

// --- Sync runs ---

func (s *LibSQLStore) RecordSyncRun(ctx context.Context, run *schema.SyncRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, started_at, completed_at, record_count, status, error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   completed_at=excluded.completed_at, record_count=excluded.record_count,
		   status=excluded.status, error=excluded.error`,
		run.ID, timeOrNow(run.StartedAt), nullTime(run.CompletedAt),
		run.RecordCount, run.Status, nullStr(run.Error),
	)
	return err
}

func (s *LibSQLStore) LatestSyncRun(ctx context.Context) (*schema.SyncRun, error) {
	run, err := scanSyncRun(s.db.QueryRowContext(ctx,
		`SELECT id, started_at, completed_at, record_count, status, error
		 FROM sync_runs ORDER BY started_at DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("sync_run", "latest")
	}
	return run, err
}

func (s *LibSQLStore) ListSyncRuns(ctx context.Context, limit int) ([]*schema.SyncRun, error) {
	query := `SELECT id, started_at, completed_at, record_count, status, error
		 FROM sync_runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*schema.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(row rowScanner) (*schema.SyncRun, error) {
	run := &schema.SyncRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.StartedAt, &completedAt, &run.RecordCount, &run.Status, &errMsg); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	run.Error = errMsg.String
	return run, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
