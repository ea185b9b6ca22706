package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/tabcollate/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "tabcollate.db"

// RunDB provides SQLite-based storage for run reports.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per collation run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		route TEXT NOT NULL,
		optimized INTEGER NOT NULL DEFAULT 0,
		planned INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cells INTEGER NOT NULL DEFAULT 0,
		interactions INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		digest TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`
	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a run report and sets its ID.
func (rdb *RunDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	if report == nil {
		return 0, errors.New("nil report")
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	stamp := report.FinishedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	query := `
	INSERT INTO runs (target, timestamp, route, optimized, planned, completed, failed, cells, interactions, aborted, digest, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := rdb.db.ExecContext(ctx, query,
		report.Target,
		stamp.UTC().Format(time.RFC3339Nano),
		report.Route.String(),
		report.Optimized,
		report.Planned,
		report.Completed,
		report.Failed,
		report.Dataset.Cells(),
		report.Interactions,
		report.Aborted,
		report.Dataset.Digest(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	report.ID = id
	return id, nil
}

// GetRunByID retrieves a run report by its ID. It returns nil, nil when
// no such run exists.
func (rdb *RunDB) GetRunByID(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeReport(id, reportJSON)
}

// GetLatestRun retrieves the most recent run of target. It returns nil, nil
// when target was never collated.
func (rdb *RunDB) GetLatestRun(ctx context.Context, target string) (*model.RunReport, error) {
	query := `
	SELECT id, report_json FROM runs
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`
	var (
		id         int64
		reportJSON string
	)
	err := rdb.db.QueryRowContext(ctx, query, target).Scan(&id, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return decodeReport(id, reportJSON)
}

func decodeReport(id int64, reportJSON string) (*model.RunReport, error) {
	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run %d: %w", id, err)
	}
	report.ID = id
	return &report, nil
}

// ListTargets returns every collated page URL.
func (rdb *RunDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM runs ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// RunMetadata summarizes a stored run without loading its dataset.
type RunMetadata struct {
	ID        int64
	Target    string
	Timestamp time.Time
	Route     string
	Completed int
	Failed    int
	Cells     int
	Aborted   bool
	Digest    string
}

// GetRunHistory lists the runs of target, newest first.
func (rdb *RunDB) GetRunHistory(ctx context.Context, target string) ([]RunMetadata, error) {
	query := `
	SELECT id, target, timestamp, route, completed, failed, cells, aborted, digest
	FROM runs
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`
	rows, err := rdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta      RunMetadata
			timestamp string
		)
		if err := rows.Scan(&meta.ID, &meta.Target, &timestamp, &meta.Route,
			&meta.Completed, &meta.Failed, &meta.Cells, &meta.Aborted, &meta.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp tries each format in turn and returns the zero time if
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
