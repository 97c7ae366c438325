package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every keyspace in the guest_kv table.
type SQLiteStore struct {
	db      *sql.DB
	maxKeys int
}

func NewSQLiteStore(dbPath string, maxKeysPerGuest int) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent guests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, maxKeys: maxKeysPerGuest}, nil
}

func (s *SQLiteStore) Space(guestID string) KV {
	return &sqliteSpace{store: s, guest: guestID}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type sqliteSpace struct {
	store *SQLiteStore
	guest string
}

func (q *sqliteSpace) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := q.store.db.QueryRowContext(ctx,
		`SELECT value FROM guest_kv WHERE guest_id = ? AND key = ?`, q.guest, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (q *sqliteSpace) Set(ctx context.Context, key string, value []byte) error {
	if q.guest == "" {
		return ErrInvalidGuest
	}
	// The quota check and the write share one transaction, which holds the
	// pool's only connection until it ends.
	tx, err := q.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set %s: %w", key, err)
	}
	defer tx.Rollback()

	if q.store.maxKeys > 0 {
		var exists, count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(key = ?), 0) FROM guest_kv WHERE guest_id = ?`,
			key, q.guest).Scan(&count, &exists)
		if err != nil {
			return fmt.Errorf("count keys: %w", err)
		}
		if exists == 0 && count >= q.store.maxKeys {
			return ErrQuotaExceeded
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO guest_kv (guest_id, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (guest_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		q.guest, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set %s: %w", key, err)
	}
	return nil
}

func (q *sqliteSpace) Delete(ctx context.Context, key string) error {
	if _, err := q.store.db.ExecContext(ctx,
		`DELETE FROM guest_kv WHERE guest_id = ? AND key = ?`, q.guest, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (q *sqliteSpace) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := q.store.db.QueryContext(ctx,
		`SELECT key FROM guest_kv WHERE guest_id = ? AND substr(key, 1, ?) = ? ORDER BY key`,
		q.guest, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
