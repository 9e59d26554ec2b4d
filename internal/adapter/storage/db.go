package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/rl1809/storefront/internal/port"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          VARCHAR(64)  NOT NULL PRIMARY KEY,
		app_id      VARCHAR(64)  NOT NULL,
		name        VARCHAR(255) NOT NULL,
		description TEXT         NOT NULL,
		price       DECIMAL(12,2) NOT NULL,
		image_url   VARCHAR(512) NOT NULL,
		stock       INT          NOT NULL,
		created_at  BIGINT       NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id           VARCHAR(64)   NOT NULL PRIMARY KEY,
		app_id       VARCHAR(64)   NOT NULL,
		user_id      VARCHAR(64)   NOT NULL,
		total_amount DECIMAL(14,2) NOT NULL,
		status       VARCHAR(16)   NOT NULL,
		created_at   BIGINT        NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id   VARCHAR(64)   NOT NULL,
		position   INT           NOT NULL,
		product_id VARCHAR(64)   NOT NULL,
		name       VARCHAR(255)  NOT NULL,
		price      DECIMAL(12,2) NOT NULL,
		quantity   INT           NOT NULL,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(64)  NOT NULL PRIMARY KEY,
		app_id        VARCHAR(64)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    BIGINT       NOT NULL,
		UNIQUE (app_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token      VARCHAR(64)  NOT NULL PRIMARY KEY,
		app_id     VARCHAR(64)  NOT NULL,
		user_id    VARCHAR(64)  NOT NULL,
		kind       VARCHAR(16)  NOT NULL,
		email      VARCHAR(255) NOT NULL,
		created_at BIGINT       NOT NULL
	)`,
}

// Open connects to a MySQL or SQLite database and checks it is reachable.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	switch driver {
	case DriverMySQL:
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	case DriverSQLite:
		// one writer at a time; readers wait on the busy timeout
		db.SetMaxOpenConns(1)
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// SQLiteDSN builds a DSN for a database file at path.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", classify(err))
		}
	}
	return nil
}

// classify maps driver errors onto port errors so callers can tell a
// permission problem from anything else.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1044, 1045, 1142, 1143:
			return fmt.Errorf("%w: %v", port.ErrPermissionDenied, err)
		}
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return fmt.Errorf("%w: %v", port.ErrPermissionDenied, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
