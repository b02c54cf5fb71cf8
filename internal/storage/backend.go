// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/nisa-chat/internal/util"
)

// DefaultKey is the key the conversation document is stored under.
const DefaultKey = "chatbot_conversations"

// Backend stores one opaque document. Read returns nil data, not an error,
// when nothing has been written yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Kind selects a Backend implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
)

// Options configures Open.
type Options struct {
	Kind Kind

	// Dir holds the file and sqlite databases.
	Dir string

	// RedisAddr is host:port of the redis server.
	RedisAddr string

	// Key defaults to DefaultKey.
	Key string
}

// Open creates the backend selected by opts.Kind.
func Open(ctx context.Context, opts Options) (Backend, error) {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	switch opts.Kind {
	case KindFile, "":
		return NewFileBackend(opts.Dir, opts.Key)
	case KindSQLite:
		return NewSQLiteBackend(ctx, filepath.Join(opts.Dir, "nisa.db"), opts.Key)
	case KindRedis:
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedisBackend(client, opts.Key), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
	}
}

// =============================================================================
// FILE
// =============================================================================

// FileBackend keeps the document in <dir>/<key>.json.
type FileBackend struct {
	path string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir, key string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileBackend{path: filepath.Join(dir, key+".json")}, nil
}

// Path returns the document's file path.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (b *FileBackend) Write(ctx context.Context, data []byte) error {
	return util.AtomicWriteFile(b.path, data, 0o644)
}

func (b *FileBackend) Close() error { return nil }

// =============================================================================
// SQLITE
// =============================================================================

// SQLiteBackend keeps the document in a kv table.
type SQLiteBackend struct {
	db  *sql.DB
	key string
}

// NewSQLiteBackend opens or creates the database at path.
func NewSQLiteBackend(ctx context.Context, path, key string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
	}
	return &SQLiteBackend{db: db, key: key}, nil
}

func (b *SQLiteBackend) Read(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", b.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		b.key, data)
	if err != nil {
		return fmt.Errorf("write %s: %w", b.key, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }

// =============================================================================
// REDIS
// =============================================================================

// RedisBackend keeps the document under a redis string key.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", b.key, err)
	}
	return data, nil
}

func (b *RedisBackend) Write(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b.key, err)
	}
	return nil
}

func (b *RedisBackend) Close() error { return b.client.Close() }

// =============================================================================
// MEMORY
// =============================================================================

// MemoryBackend keeps the document in memory. It is used by one-shot
// commands that must not touch the user's history and by tests.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

func (b *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, nil
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
