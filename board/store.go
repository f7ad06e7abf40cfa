package board

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the store
var ErrRunNotFound = errors.New("run not found")

// Run is one stored analysis run of a board
type Run struct {
	ID        string     `json:"id"`
	Board     string     `json:"board"`
	Source    string     `json:"source,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	Items     int        `json:"items"`
	Groups    int        `json:"groups"`
	Anomalies int        `json:"anomalies"`
	Stats     BuildStats `json:"stats"`
}

// Store keeps the history of analysis runs in SQLite
type Store struct {
	db     *sql.DB
	dbPath string
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	board       TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	item_count  INTEGER NOT NULL,
	group_count INTEGER NOT NULL,
	anomalies   INTEGER NOT NULL DEFAULT 0,
	stats       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_board ON runs(board, created_at);

CREATE TABLE IF NOT EXISTS analyses (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	group_index INTEGER NOT NULL,
	group_id    TEXT NOT NULL,
	team        TEXT NOT NULL,
	topic       TEXT NOT NULL,
	population  INTEGER NOT NULL,
	score       INTEGER,
	data        TEXT NOT NULL,
	PRIMARY KEY (run_id, group_index)
);
`

// OpenStore opens (creating if needed) the SQLite history database
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, dbPath: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult stores a run and its analyses and returns the new run ID
func (s *Store) SaveResult(ctx context.Context, boardID string, res *Result) (string, error) {
	if boardID == "" {
		boardID = res.Board
	}
	if boardID == "" {
		return "", fmt.Errorf("board name cannot be empty")
	}

	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return "", fmt.Errorf("marshaling stats: %w", err)
	}

	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, board, source, created_at, item_count, group_count, anomalies, stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, boardID, res.Source, created.UTC().Format(timeLayout),
		len(res.Items), len(res.Analyses), len(res.Anomalies), string(stats),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, a := range res.Analyses {
		data, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("marshaling group %d: %w", a.Group, err)
		}
		var score sql.NullInt64
		if a.Score.Valid {
			score = sql.NullInt64{Int64: int64(a.Score.Value), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analyses (run_id, group_index, group_id, team, topic, population, score, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, a.Group, a.GroupID(), a.TeamName, a.Topic, a.Population, score, string(data),
		); err != nil {
			return "", fmt.Errorf("inserting group %d: %w", a.Group, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the runs of a board, newest first. An empty board lists
// every run.
func (s *Store) ListRuns(ctx context.Context, boardID string) ([]Run, error) {
	query := `SELECT id, board, source, created_at, item_count, group_count, anomalies, stats FROM runs`
	var args []interface{}
	if boardID != "" {
		query += " WHERE board = ?"
		args = append(args, boardID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created, stats string
		if err := rows.Scan(&r.ID, &r.Board, &r.Source, &created, &r.Items, &r.Groups, &r.Anomalies, &stats); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("run %s: parsing created_at: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(stats), &r.Stats); err != nil {
			return nil, fmt.Errorf("run %s: parsing stats: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadAnalyses returns the analyses of a run in group order
func (s *Store) LoadAnalyses(ctx context.Context, runID string) ([]Analysis, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM analyses WHERE run_id = ? ORDER BY group_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("loading analyses: %w", err)
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		var a Analysis
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("parsing analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
