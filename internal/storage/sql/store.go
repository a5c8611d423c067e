package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/storage"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// writeError maps a failed INSERT or UPDATE to domain.ErrAlreadyExists for a
// unique violation and to domain.ErrNotSaved otherwise.
func writeError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %v", domain.ErrNotSaved, err)
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db      *sqlx.DB
	driver  string
	dialect goqu.DialectWrapper
}

// New connects to the database and applies pending migrations.
// Supported drivers are "sqlite3" and "postgres".
func New(driver, dsn string) (*Store, error) {
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	open := driver
	if driver == "sqlite3" {
		open = sqliteDriver
	}
	conn, err := sql.Open(open, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	db := sqlx.NewDb(conn, driver)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if driver == "sqlite3" {
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, path.Join("migrations", driver)); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver, dialect: goqu.Dialect(driver)}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the applied migration version.
func (s *Store) Version() (int64, error) {
	return goose.GetDBVersion(s.db.DB)
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver, dialect: s.dialect}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx      *sqlx.Tx
	driver  string
	dialect goqu.DialectWrapper
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqlBuilder is satisfied by every goqu dataset we render.
type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func selectBuilt(ctx context.Context, db dbInterface, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return db.SelectContext(ctx, dest, query, args...)
}

func getBuilt(ctx context.Context, db dbInterface, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	return db.GetContext(ctx, dest, query, args...)
}

// insertReturningID runs a named INSERT ... RETURNING id and stores the new id.
func insertReturningID(ctx context.Context, db dbInterface, table string, columns []string, arg any, id *int64) error {
	named := make([]string, len(columns))
	for i, c := range columns {
		named[i] = ":" + c
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(columns, ", "), strings.Join(named, ", "))

	query, args, err := db.BindNamed(stmt, arg)
	if err != nil {
		return fmt.Errorf("binding insert: %w", err)
	}
	if err := db.QueryRowxContext(ctx, query, args...).Scan(id); err != nil {
		return writeError(err)
	}
	return nil
}

// updateByKey runs a named UPDATE of columns matched on key.
func updateByKey(ctx context.Context, db dbInterface, table, key string, columns []string, arg any) error {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = c + " = :" + c
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", table, strings.Join(sets, ", "), key, key)

	query, args, err := db.BindNamed(stmt, arg)
	if err != nil {
		return fmt.Errorf("binding update: %w", err)
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func selectColumns(columns []string) []any {
	cols := make([]any, 0, len(columns)+1)
	cols = append(cols, "id")
	for _, c := range columns {
		cols = append(cols, c)
	}
	return cols
}
