// Package directory provides read-only employee lookups backed by the
// main database, with an optional redis cache in front.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no employee matches the lookup.
var ErrNotFound = errors.New("directory: employee not found")

// Employee roles.
const (
	RoleSpecialist = 1
	RoleGroupHead  = 2
	RoleSenior     = 3
	RoleAdmin      = 10
)

// Employee is one row of the read-only employee directory.
type Employee struct {
	ChatID   int64  `json:"chat_id"`
	FullName string `json:"fullname"`
	Role     int    `json:"role"`
	Division string `json:"division"`
	Boss     string `json:"boss"`
	Username string `json:"username"`
}

// IsDuty reports whether the employee may act as a duty.
func (e *Employee) IsDuty() bool {
	return e.Role == RoleGroupHead || e.Role == RoleSenior || e.Role == RoleAdmin
}

// IsAdmin reports whether the employee has the admin role.
func (e *Employee) IsAdmin() bool {
	return e.Role == RoleAdmin
}

// CanAsk reports whether the employee may create questions at all.
func (e *Employee) CanAsk() bool {
	switch e.Role {
	case RoleSpecialist, RoleGroupHead, RoleSenior, RoleAdmin:
		return true
	}
	return false
}

// Directory reads employees from the main database. When a redis client is
// provided, lookups are cached for cacheTTL.
type Directory struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
}

// Options configures a Directory.
type Options struct {
	Redis    *redis.Client // nil disables caching
	CacheTTL time.Duration
}

// Open opens the main database at dbPath.
func Open(dbPath string, opts Options) (*Directory, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open main db: %w", err)
	}
	// The employees table is owned by the roster importer; this only makes
	// a fresh database usable.
	_, _ = db.Exec(`CREATE TABLE IF NOT EXISTS employees (
		chat_id BIGINT PRIMARY KEY,
		fullname TEXT NOT NULL,
		role INTEGER NOT NULL DEFAULT 0,
		division TEXT NOT NULL DEFAULT '',
		boss TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT ''
	)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_employees_fullname ON employees(fullname)`)

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Directory{db: db, cache: opts.Redis, cacheTTL: ttl}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

// DB returns the underlying *sql.DB (used by roster import tooling).
func (d *Directory) DB() *sql.DB { return d.db }

// Get returns the employee with the given messenger chat id.
func (d *Directory) Get(ctx context.Context, chatID int64) (*Employee, error) {
	key := fmt.Sprintf("employee:id:%d", chatID)
	if e := d.cached(ctx, key); e != nil {
		return e, nil
	}

	e, err := d.query(ctx, `SELECT chat_id, fullname, role, COALESCE(division,''), COALESCE(boss,''), COALESCE(username,'')
		FROM employees WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, err
	}
	d.put(ctx, key, e)
	return e, nil
}

// GetByName returns the employee with the given full name.
func (d *Directory) GetByName(ctx context.Context, fullName string) (*Employee, error) {
	key := "employee:name:" + fullName
	if e := d.cached(ctx, key); e != nil {
		return e, nil
	}

	e, err := d.query(ctx, `SELECT chat_id, fullname, role, COALESCE(division,''), COALESCE(boss,''), COALESCE(username,'')
		FROM employees WHERE fullname = ?`, fullName)
	if err != nil {
		return nil, err
	}
	d.put(ctx, key, e)
	return e, nil
}

func (d *Directory) query(ctx context.Context, q string, args ...any) (*Employee, error) {
	var e Employee
	err := d.db.QueryRowContext(ctx, q, args...).
		Scan(&e.ChatID, &e.FullName, &e.Role, &e.Division, &e.Boss, &e.Username)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	return &e, nil
}

func (d *Directory) cached(ctx context.Context, key string) *Employee {
	if d.cache == nil {
		return nil
	}
	raw, err := d.cache.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		slog.Warn("Directory cache read failed", "key", key, "error", err)
		return nil
	}
	var e Employee
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil
	}
	return &e
}

func (d *Directory) put(ctx context.Context, key string, e *Employee) {
	if d.cache == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, raw, d.cacheTTL).Err(); err != nil {
		slog.Warn("Directory cache write failed", "key", key, "error", err)
	}
}
