// Package db owns the SQLite database: schema migration plus the query
// functions the handlers call.
package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

var DB *sql.DB

// Sentinel errors for the cases handlers branch on.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

func Init(path string) error {
	var err error
	DB, err = sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	// Single writer; also keeps every connection on the same in-memory
	// database under test.
	DB.SetMaxOpenConns(1)

	if err := migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fname TEXT NOT NULL DEFAULT '',
			lname TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			jwt_verified INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS companycodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			compcode TEXT NOT NULL UNIQUE,
			companyname TEXT NOT NULL,
			admin_email TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			project_name TEXT PRIMARY KEY,
			contractor_email TEXT NOT NULL DEFAULT '',
			user_email TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			cosd DATE,
			a1 BOOLEAN, a2 BOOLEAN, a3 BOOLEAN, a4 BOOLEAN, a5 BOOLEAN,
			b1 BOOLEAN, b2 BOOLEAN, b3 BOOLEAN,
			c1 BOOLEAN, c2 BOOLEAN, c3 BOOLEAN,
			d1 BOOLEAN, d2 BOOLEAN, d3 BOOLEAN, d4 BOOLEAN,
			d5 BOOLEAN, d6 BOOLEAN, d7 BOOLEAN,
			e1 BOOLEAN, e2 BOOLEAN, e3 BOOLEAN,
			f1 BOOLEAN, f2 BOOLEAN,
			drn TEXT, stc TEXT, drv TEXT,
			date_created DATETIME DEFAULT CURRENT_TIMESTAMP,
			edit_timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			comment_id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_name TEXT NOT NULL REFERENCES projects(project_name)
				ON UPDATE CASCADE ON DELETE CASCADE,
			user_id INTEGER NOT NULL,
			user_name TEXT NOT NULL,
			comment_text TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			token TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := DB.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
	}
}
