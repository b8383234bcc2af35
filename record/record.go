// Package record stores telemetry in a sqlite file for later analysis.
package record

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vecScope/telemetry"
)

type DB struct {
	Db      *sql.DB
	process string

	session int64
	pid     int32
	address uint64
}

type Session struct {
	ID      int64
	Started time.Time
	Process string
	PID     int32
	Address uint64
	Source  string
}

func NewDB(path, process string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}

	return &DB{Db: db, process: process}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		started  DATETIME NOT NULL,
		process  TEXT NOT NULL,
		pid      INTEGER NOT NULL,
		address  INTEGER NOT NULL,
		source   TEXT
	);
	CREATE TABLE IF NOT EXISTS samples (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		ts_ns      INTEGER NOT NULL,
		x          REAL NOT NULL,
		y          REAL NOT NULL,
		z          REAL NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id, ts_ns);"); err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}
	return nil
}

// Record writes one batch of samples in a single transaction. A new
// session is opened whenever the linked pid or address changes.
func (db *DB) Record(st telemetry.Status, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	if db.session == 0 || (st.State == telemetry.Linked && (st.PID != db.pid || st.Address != db.address)) {
		if err := db.openSession(st, samples[0].At); err != nil {
			return err
		}
	}

	tx, err := db.Db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO samples (session_id, ts_ns, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %v", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(db.session, s.At.UnixNano(), s.X, s.Y, s.Z); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert sample: %v", err)
		}
	}
	return tx.Commit()
}

func (db *DB) openSession(st telemetry.Status, started time.Time) error {
	res, err := db.Db.Exec(
		`INSERT INTO sessions (started, process, pid, address, source) VALUES (?, ?, ?, ?, ?)`,
		started, db.process, st.PID, int64(st.Address), st.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %v", err)
	}
	if db.session, err = res.LastInsertId(); err != nil {
		return err
	}
	db.pid, db.address = st.PID, st.Address
	return nil
}

func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Db.Query(`SELECT id, started, process, pid, address, source FROM sessions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var addr int64
		var source sql.NullString
		if err := rows.Scan(&s.ID, &s.Started, &s.Process, &s.PID, &addr, &source); err != nil {
			return nil, err
		}
		s.Address = uint64(addr)
		s.Source = source.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) Samples(session int64) ([]telemetry.Sample, error) {
	rows, err := db.Db.Query(`SELECT ts_ns, x, y, z FROM samples WHERE session_id = ? ORDER BY ts_ns, id`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.Sample
	for rows.Next() {
		var ns int64
		var s telemetry.Sample
		if err := rows.Scan(&ns, &s.X, &s.Y, &s.Z); err != nil {
			return nil, err
		}
		s.At = time.Unix(0, ns)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) Close() error {
	return db.Db.Close()
}
