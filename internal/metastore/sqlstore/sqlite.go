package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteIndex is an Index backed by a local SQLite file, for single-master
// deployments that still want queryable history across restarts.
type SQLiteIndex struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if necessary) a SQLite-backed Index at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) initSchema() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS tables (
			id   INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);
		CREATE TABLE IF NOT EXISTS jobs (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			success    BOOLEAN NOT NULL,
			message    TEXT,
			recorded   INTEGER NOT NULL
		);
	`)
	return err
}

func (idx *SQLiteIndex) RecordTable(ctx context.Context, id int, name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.ExecContext(ctx, `INSERT OR REPLACE INTO tables (id, name) VALUES (?, ?)`, id, name)
	return err
}

func (idx *SQLiteIndex) TableID(ctx context.Context, name string) (int, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var id int
	err := idx.db.QueryRowContext(ctx, `SELECT id FROM tables WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (idx *SQLiteIndex) RecordJob(ctx context.Context, id int, name string, success bool, message string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, name, success, message, recorded) VALUES (?, ?, ?, ?, ?)`,
		id, name, success, message, id)
	return err
}

func (idx *SQLiteIndex) Jobs(ctx context.Context) ([]JobRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rows, err := idx.db.QueryContext(ctx, `SELECT id, name, success, message FROM jobs ORDER BY recorded DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var r JobRecord
		var message sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Success, &message); err != nil {
			return nil, err
		}
		r.Message = message.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
