package kv

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/hkdf"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_ns  INTEGER NOT NULL,
    mac         BLOB
);
`

// integrityDomain separates the row MAC key from any other use of the secret.
const integrityDomain = "formsync-kv-integrity-v1"

// SQLite is a Store backed by a single SQLite table. When opened with a
// secret every row carries an HMAC-SHA256 over its key and value, and a row
// whose MAC does not verify is reported as ErrIntegrity.
type SQLite struct {
	db      *sql.DB
	hmacKey []byte
}

// OpenSQLite opens or creates the database at path. An empty secret disables
// row MACs.
func OpenSQLite(path, secret string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	s := &SQLite{db: db}
	if secret != "" {
		key, err := deriveMACKey(secret)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.hmacKey = key
	}
	return s, nil
}

func deriveMACKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(integrityDomain), []byte("row-mac"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive integrity key: %w", err)
	}
	return key, nil
}

func (s *SQLite) computeMAC(key, value string) []byte {
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write([]byte(key))
	mac.Write([]byte{0})
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		mac   []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, mac FROM entries WHERE key = ?`, key,
	).Scan(&value, &mac)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query entry: %w", err)
	}

	if s.hmacKey != nil && !hmac.Equal(mac, s.computeMAC(key, value)) {
		return "", false, fmt.Errorf("entry %q: %w", key, ErrIntegrity)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	var mac []byte
	if s.hmacKey != nil {
		mac = s.computeMAC(key, value)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value, updated_ns, mac) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			updated_ns = excluded.updated_ns, mac = excluded.mac`,
		key, value, time.Now().UnixNano(), mac,
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Keys returns every stored key in lexical order.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DB returns the underlying database connection.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
