package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresIndex is an Index backed by PostgreSQL, for deployments running
// more than one master replica against shared metadata.
type PostgresIndex struct {
	db *sql.DB
}

// OpenPostgres opens an Index against dsn, a libpq connection string.
func OpenPostgres(dsn string) (*PostgresIndex, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: postgres DSN is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	idx := &PostgresIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *PostgresIndex) initSchema() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS tables (
			id   INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);
		CREATE TABLE IF NOT EXISTS jobs (
			id       INTEGER PRIMARY KEY,
			name     TEXT NOT NULL,
			success  BOOLEAN NOT NULL,
			message  TEXT,
			recorded SERIAL
		);
	`)
	return err
}

func (idx *PostgresIndex) RecordTable(ctx context.Context, id int, name string) error {
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO tables (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		id, name)
	return err
}

func (idx *PostgresIndex) TableID(ctx context.Context, name string) (int, bool, error) {
	var id int
	err := idx.db.QueryRowContext(ctx, `SELECT id FROM tables WHERE name = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (idx *PostgresIndex) RecordJob(ctx context.Context, id int, name string, success bool, message string) error {
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, success, message) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET success = EXCLUDED.success, message = EXCLUDED.message`,
		id, name, success, message)
	return err
}

func (idx *PostgresIndex) Jobs(ctx context.Context) ([]JobRecord, error) {
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

func (idx *PostgresIndex) Close() error {
	return idx.db.Close()
}
