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

	"github.com/portraitforge/portraitforge/internal/config"
)

const (
	driverLibsql      = "libsql"
	memoryDSN         = ":memory:"
	busyTimeoutMillis = 5000
)

// Store wraps the libsql connection holding artifacts and generation records.
type Store struct {
	DB     *sql.DB
	driver string
	target target

	// PublicBaseURL rewrites artifact refs to {PublicBaseURL}/v1/artifacts/{id}.
	PublicBaseURL string
}

// target is a resolved libsql DSN. file is set for on-disk databases.
type target struct {
	dsn    string
	local  bool
	file   string
	remote bool
}

// Open connects to the store described by cfg. Local databases are limited to
// one connection and switched to WAL with a busy timeout.
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
	if tgt.file != "" {
		if err := ensureStoreDir(tgt.file); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverLibsql, tgt.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if tgt.local {
		// One writer; also keeps a :memory: database shared across calls.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	if tgt.file != "" {
		if err := tuneLocal(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, driver: driver, target: tgt}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location describes where the store lives without exposing credentials.
func (s *Store) Location() string {
	switch {
	case s == nil:
		return ""
	case s.target.file != "":
		return s.target.file
	case s.target.remote:
		if u, err := url.Parse(s.target.dsn); err == nil {
			return u.Scheme + "://" + u.Host
		}
		return "remote"
	default:
		return s.target.dsn
	}
}

// CheckHealth pings the database.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store not open")
	}
	return s.DB.PingContext(ctx)
}

// resolveTarget accepts a remote URL (with optional auth token), ":memory:",
// a file: URI, a libsql: URI or a bare filesystem path.
func resolveTarget(cfg config.StoreConfig) (target, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		if err != nil {
			return target{}, err
		}
		return target{dsn: dsn, remote: true}, nil
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return target{}, errors.New("store path or url is required")
	case path == memoryDSN:
		return target{dsn: memoryDSN, local: true}, nil
	case strings.HasPrefix(path, "libsql:"):
		return target{dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		file, err := fileURIPath(path)
		if err != nil {
			return target{}, err
		}
		return target{dsn: path, local: true, file: file}, nil
	default:
		clean := filepath.Clean(path)
		return target{dsn: "file:" + clean, local: true, file: clean}, nil
	}
}

func tuneLocal(ctx context.Context, db *sql.DB) error {
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		return fmt.Errorf("enable wal journal: %w", err)
	}
	var timeout int
	if err := db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)).Scan(&timeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
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
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func fileURIPath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}
	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureStoreDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
