package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/loyalbridge/admin/internal/model"
)

// Supported store dialects.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Store is the credential store: administrator identity, role, active flag
// and timestamps. SQLite is the default backend; postgres and mysql are
// selected with OpenStore.
type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore creates a SQLite-backed store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "loyalbridge.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return OpenStore(DriverSQLite, dsn)
}

// OpenStore connects to the given dialect and runs migrations. For mysql the
// DSN must include parseTime=true.
func OpenStore(driver, dsn string) (*Store, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate credential database: %w", err)
	}
	return s, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite, "":
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	case DriverMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the dialect the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// ---------------------------------------------------------------------------
// Admin CRUD
// ---------------------------------------------------------------------------

const adminColumns = `id, email, password_hash, role, first_name, last_name,
	is_active, last_login_at, created_at, updated_at`

// CreateAdmin inserts a new admin account. The email is normalized and the
// ID, CreatedAt, and UpdatedAt fields are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	if !admin.Role.Valid() {
		return fmt.Errorf("insert admin: invalid role %q", admin.Role)
	}
	now := time.Now().UTC()
	admin.Email = model.NormalizeEmail(admin.Email)
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(email, password_hash, role, first_name, last_name, is_active, created_at, updated_at)
		VALUES
		(:email, :password_hash, :role, :first_name, :last_name, :is_active, :created_at, :updated_at)`

	query, args, err := sqlx.Named(q, admin)
	if err != nil {
		return fmt.Errorf("bind admin insert: %w", err)
	}
	query = s.db.Rebind(query)

	if s.driver == DriverPostgres {
		if err := s.db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&admin.ID); err != nil {
			return fmt.Errorf("insert admin: %w", classifyWriteError(err))
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert admin: %w", classifyWriteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdmin returns an admin by ID.
func (s *Store) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins WHERE id = ?")
	if err := s.db.GetContext(ctx, &admin, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// GetAdminByEmail returns an admin by email address. Lookups are
// case-insensitive because emails are stored normalized.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &admin, q, model.NormalizeEmail(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// AdminExists reports whether an admin with this email exists.
func (s *Store) AdminExists(ctx context.Context, email string) (bool, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &count, q, model.NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("count admins by email: %w", err)
	}
	return count > 0, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT "+adminColumns+" FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// ListAdminsByRole returns the admins holding role.
func (s *Store) ListAdminsByRole(ctx context.Context, role model.AdminRole) ([]model.Admin, error) {
	var admins []model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admins WHERE role = ? ORDER BY email")
	if err := s.db.SelectContext(ctx, &admins, q, role); err != nil {
		return nil, fmt.Errorf("list admins by role: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// CountActiveAdmins returns the number of admins that can log in.
func (s *Store) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	q := s.db.Rebind("SELECT COUNT(*) FROM admins WHERE is_active = ?")
	if err := s.db.GetContext(ctx, &count, q, true); err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return count, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.updateAdmin(ctx, "update admin last login",
		"UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?", now, now, id)
}

// SetAdminActive enables or disables an admin. Disabled admins keep their
// row but can no longer log in or authenticate requests.
func (s *Store) SetAdminActive(ctx context.Context, id int64, active bool) error {
	return s.updateAdmin(ctx, "set admin active",
		"UPDATE admins SET is_active = ?, updated_at = ? WHERE id = ?", active, time.Now().UTC(), id)
}

// UpdateAdminPassword replaces the stored password digest.
func (s *Store) UpdateAdminPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateAdmin(ctx, "update admin password",
		"UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?", passwordHash, time.Now().UTC(), id)
}

func (s *Store) updateAdmin(ctx context.Context, op, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyWriteError maps unique-constraint violations from any of the
// supported dialects to ErrDuplicate.
func classifyWriteError(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
