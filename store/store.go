// store.go
//
// End-of-session bookkeeping. Each analyzer run leaves one row behind:
// what was subscribed, when, how many records made it to CSV, and how many
// were lost to ring overflow. Cold path only, touched at startup and
// shutdown; the live pipeline never sees this package.

package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	products      TEXT    NOT NULL,
	started_ns    INTEGER NOT NULL,
	ended_ns      INTEGER NOT NULL,
	received      INTEGER NOT NULL,
	parsed        INTEGER NOT NULL,
	logged        INTEGER NOT NULL,
	dropped       INTEGER NOT NULL,
	last_price    TEXT,
	price_ema     REAL,
	mid_price_ema REAL
);`

// Summary is one session's worth of counters and final smoothed values.
type Summary struct {
	Products    []string
	StartedNs   int64
	EndedNs     int64
	Received    int64
	Parsed      int64
	Logged      int64
	Dropped     int64
	LastPrice   string
	PriceEMA    float64
	MidPriceEMA float64
}

// SessionStore persists summaries to a local sqlite database.
type SessionStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure sessions table: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// RecordSession appends one summary row.
func (s *SessionStore) RecordSession(sum Summary) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions
		 (products, started_ns, ended_ns, received, parsed, logged, dropped,
		  last_price, price_ema, mid_price_ema)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.Join(sum.Products, ","),
		sum.StartedNs, sum.EndedNs,
		sum.Received, sum.Parsed, sum.Logged, sum.Dropped,
		sum.LastPrice, sum.PriceEMA, sum.MidPriceEMA,
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Sessions returns all stored summaries, oldest first. Diagnostic surface
// for tooling and tests.
func (s *SessionStore) Sessions() ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT products, started_ns, ended_ns, received, parsed, logged,
		        dropped, last_price, price_ema, mid_price_ema
		 FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var products string
		if err := rows.Scan(&products, &sum.StartedNs, &sum.EndedNs,
			&sum.Received, &sum.Parsed, &sum.Logged, &sum.Dropped,
			&sum.LastPrice, &sum.PriceEMA, &sum.MidPriceEMA); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if products != "" {
			sum.Products = strings.Split(products, ",")
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SessionStore) Close() error { return s.db.Close() }
