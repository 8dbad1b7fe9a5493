package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteConfig configures a file-backed SQLite handle.
type SQLiteConfig struct {
	Path         string
	MaxOpenConns int
	BusyTimeout  time.Duration
}

// DSN renders the modernc DSN with per-connection pragmas. The rollback journal
// keeps the whole database in the single file at Path after every commit.
func (c SQLiteConfig) DSN() string {
	busy := c.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(DELETE)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "temp_store(MEMORY)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	return "file:" + c.Path + "?" + q.Encode()
}

// NewSQLite opens and pings a SQLite database through sqlx.
func NewSQLite(ctx context.Context, cfg SQLiteConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
