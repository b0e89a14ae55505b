// Package kv provides the byte-oriented key-value backends the progress store
// persists through.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors shared by all backends.
var (
	ErrNotFound       = errors.New("key not found")
	ErrInvalidKey     = errors.New("invalid key")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrClosed         = errors.New("store closed")
)

// Store is a minimal key-value store. Set replaces the whole value in one write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

// Supported backends.
const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
)

// Default connection settings.
const (
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "stamprally:"
	DefaultDialTimeout = 5 * time.Second
	DefaultSQLiteFile  = "stamprally.db"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend    Backend
	Dir        string
	SQLitePath string
	Redis      RedisOptions
}

// Open creates the backend named by opts.Backend. An empty name selects the file backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch opts.Backend {
	case BackendMemory:
		store = NewMemory()
	case BackendFile, "":
		store, err = asStore(NewFile(opts.Dir))
	case BackendRedis:
		store, err = asStore(NewRedis(ctx, opts.Redis))
	case BackendSQLite:
		store, err = asStore(NewSQLite(opts.SQLitePath))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", opts.Backend, err)
	}

	return store, nil
}

// asStore avoids returning a typed nil pointer inside a non-nil interface.
func asStore[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}

	return s, nil
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
