// Package db is the persistence façade: typed CRUD over actors, activities,
// objects and follow state, backed by SQLite. Standardizes on
// modernc.org/sqlite (pure Go, no cgo) and its JSON1 extension to answer
// jsonb-path-style queries (`data->>'id'`, `data->'object'->>'id'`) against
// SQLite's json_extract.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS actors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uri TEXT UNIQUE NOT NULL,
	preferred_username TEXT NOT NULL,
	local INTEGER NOT NULL DEFAULT 0,
	display_name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	inbox TEXT NOT NULL DEFAULT '',
	public_key_pem TEXT NOT NULL DEFAULT '',
	private_key_pem TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	followers TEXT NOT NULL DEFAULT '[]',
	created TEXT NOT NULL,
	modified TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_actors_local_username ON actors(preferred_username) WHERE local = 1;

CREATE TABLE IF NOT EXISTS activities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data TEXT NOT NULL,
	actor_uri TEXT NOT NULL,
	local INTEGER NOT NULL DEFAULT 0,
	created TEXT NOT NULL,
	modified TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activities_id ON activities(json_extract(data, '$.id'));
CREATE INDEX IF NOT EXISTS idx_activities_object_id ON activities(json_extract(data, '$.object.id'));
CREATE INDEX IF NOT EXISTS idx_activities_reply_to ON activities(json_extract(data, '$.object.inReplyTo'));

CREATE TABLE IF NOT EXISTS objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	object_id TEXT UNIQUE NOT NULL,
	type TEXT NOT NULL DEFAULT '',
	attributed_to TEXT NOT NULL DEFAULT '',
	in_reply_to TEXT NOT NULL DEFAULT '',
	data TEXT NOT NULL,
	created TEXT NOT NULL,
	modified TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id INTEGER NOT NULL,
	activity_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	created TEXT NOT NULL
);
`

// DB wraps the sqlite handle. All methods are safe for concurrent use; the
// underlying *sql.DB pools connections (spec recommends 2-4x CPU cores).
type DB struct {
	conn *sql.DB
}

var (
	instance *DB
	once     sync.Once
)

// GetDB returns the process-wide singleton, opening the database (and
// running migrations) on first call.
func GetDB(path string, maxOpenConns int) *DB {
	once.Do(func() {
		conn, err := sql.Open("sqlite", path)
		if err != nil {
			panic(fmt.Errorf("open sqlite database: %w", err))
		}
		conn.SetMaxOpenConns(maxOpenConns)
		instance = &DB{conn: conn}
		if err := instance.migrate(); err != nil {
			panic(fmt.Errorf("migrate database: %w", err))
		}
	})
	return instance
}

func (d *DB) migrate() error {
	_, err := d.conn.Exec(schema)
	return err
}

// wrapTransaction runs f inside a single committed transaction, matching
// the invariant that every mutating operation on an actor or activity
// commits atomically (spec section 5).
func (d *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
