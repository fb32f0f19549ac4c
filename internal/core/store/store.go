// Package store persists tracker state in libsql (local file or Turso).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/postforge/postforge/internal/config"
)

const driverLibsql = "libsql"

var errNotInitialized = errors.New("store is not initialized")

// Store wraps the database connection.
type Store struct {
	DB     *sql.DB
	driver string
	target target
}

// Open connects to the configured database and verifies it with a ping.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	tgt, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}
	if err := tgt.prepare(); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, tgt.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", tgt.kind, err)
	}
	if tgt.kind == targetMemory {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store at %s: %w", tgt.kind, tgt.Location(), err)
	}

	return &Store{DB: db, driver: driver, target: tgt}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location describes where the data lives with credentials removed.
func (s *Store) Location() string {
	if s == nil {
		return ""
	}
	return s.target.Location()
}

// Describe reports where cfg points without opening it or leaking tokens.
func Describe(cfg config.StoreConfig) string {
	tgt, err := resolveTarget(cfg)
	if err != nil {
		return "(unconfigured)"
	}
	return string(tgt.kind) + " " + tgt.Location()
}

// Ping checks the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	return s.DB.PingContext(ctx)
}

type targetKind string

const (
	targetMemory targetKind = "memory"
	targetFile   targetKind = "file"
	targetRemote targetKind = "remote"
)

// target is a resolved connection string plus what it points at.
type target struct {
	kind  targetKind
	dsn   string
	local string // filesystem path for file targets
}

func resolveTarget(cfg config.StoreConfig) (target, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return target{}, err
		}
		return target{kind: targetRemote, dsn: dsn}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return target{}, errors.New("store path or url is required")
	case path == ":memory:":
		return target{kind: targetMemory, dsn: path}, nil
	case strings.HasPrefix(path, "libsql:"):
		return target{kind: targetRemote, dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		local, err := filePathOf(path)
		if err != nil {
			return target{}, err
		}
		return target{kind: targetFile, dsn: path, local: local}, nil
	default:
		clean := filepath.Clean(path)
		return target{kind: targetFile, dsn: "file:" + clean, local: clean}, nil
	}
}

// prepare creates the parent directory of a file database.
func (t target) prepare() error {
	if t.kind != targetFile {
		return nil
	}
	dir := filepath.Dir(t.local)
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

func (t target) Location() string {
	switch t.kind {
	case targetFile:
		return t.local
	case targetRemote:
		parsed, err := url.Parse(t.dsn)
		if err != nil {
			return "remote"
		}
		parsed.RawQuery = ""
		parsed.User = nil
		return parsed.String()
	default:
		return t.dsn
	}
}

func withAuthToken(dsn, token string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	query := parsed.Query()
	if query.Get("authToken") != "" {
		return dsn, nil
	}
	query.Set("authToken", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func filePathOf(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	local := parsed.Path
	if local == "" {
		local = parsed.Opaque
	}
	return strings.TrimPrefix(local, "//"), nil
}
