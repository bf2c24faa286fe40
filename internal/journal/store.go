package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trialrec/internal/config"
	"trialrec/internal/fileio"
)

// Store persists command outcomes backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ fileio.Recorder = (*Store)(nil)

// Open connects to the journal configured in cfg. It returns ErrDisabled when
// the journal is turned off.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil || !cfg.Journal.Enabled {
		return nil, ErrDisabled
	}
	return OpenPath(cfg.Paths.JournalPath)
}

// OpenPath initializes or connects to the journal database at path.
func OpenPath(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one command outcome.
func (s *Store) Record(ctx context.Context, outcome fileio.Outcome) error {
	status := StatusOK
	var errMsg any
	if outcome.Err != nil {
		status = StatusFailed
		errMsg = outcome.Err.Error()
	}
	started := outcome.StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO commands (
            session_id, seq, kind, target, status, error_message, started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.SessionID,
		outcome.Seq,
		string(outcome.Kind),
		nullableString(outcome.Target),
		status,
		errMsg,
		started.UTC().Format(timeLayout),
		outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert command outcome: %w", err)
	}
	return nil
}

// timeLayout is fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "id, session_id, seq, kind, target, status, error_message, started_at, duration_ms"

// List returns journal entries in execution order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.FailedOnly {
		clauses = append(clauses, "status = ?")
		args = append(args, StatusFailed)
	}

	query := `SELECT ` + entryColumns + ` FROM commands`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Sessions summarises the journal per session, most recent first.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id,
               COUNT(1),
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               MIN(started_at),
               MAX(started_at)
        FROM commands
        GROUP BY session_id
        ORDER BY MAX(id) DESC`, StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("summarise sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var (
			summary  SessionSummary
			firstRaw string
			lastRaw  string
		)
		if err := rows.Scan(&summary.SessionID, &summary.Commands, &summary.Failed, &firstRaw, &lastRaw); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summary.FirstAt = parseTime(firstRaw)
		summary.LastAt = parseTime(lastRaw)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		target     sql.NullString
		status     string
		errMsg     sql.NullString
		startedRaw string
		durationMS int64
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Seq,
		&entry.Kind,
		&target,
		&status,
		&errMsg,
		&startedRaw,
		&durationMS,
	); err != nil {
		return Entry{}, err
	}
	entry.Target = target.String
	entry.Status = Status(status)
	entry.ErrorMessage = errMsg.String
	entry.StartedAt = parseTime(startedRaw)
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	return entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
