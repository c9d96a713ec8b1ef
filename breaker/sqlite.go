package breaker

import (
	"database/sql"
	"encoding/json"

	// import sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists breaker records in a single key/value table so the
// governor can share durable state with other processes on the host
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating when needed) a sqlite database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS breaker_records (
		key TEXT PRIMARY KEY,
		record TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every persisted record, applying the same tolerant parsing as
// the file store so unknown statuses fail closed to Open
func (s *SQLiteStore) Load() (map[string]Record, error) {
	rows, err := s.db.Query("SELECT key, record FROM breaker_records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		var k, raw string
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, err
		}
		rec, err := parseRecord([]byte(raw))
		if err != nil {
			continue
		}
		records[k] = rec
	}
	return records, rows.Err()
}

// Save replaces the persisted state with records in one transaction
func (s *SQLiteStore) Save(records map[string]Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM breaker_records"); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO breaker_records (key, record) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for k := range records {
		data, err := json.Marshal(records[k])
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err = stmt.Exec(k, string(data)); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
