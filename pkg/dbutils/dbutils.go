package dbutils

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"k8s.io/klog"
	_ "modernc.org/sqlite"

	"github.com/bcaldwell/moneymanager/pkg/config"
)

var validDBName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CreateClient opens the database selected by cfg.SQL.Driver
func CreateClient(cfg *config.Config, secrets *config.Secrets) (*bun.DB, error) {
	switch cfg.SQL.Driver {
	case "sqlite":
		return CreateSqliteClient(cfg.SQL.SqlitePath)
	default:
		return CreatePostgresClient(cfg.SQL.Database, secrets)
	}
}

func CreatePostgresClient(dbname string, secrets *config.Secrets) (*bun.DB, error) {
	var pgconn *pgdriver.Connector

	// bypass creating of db if database_url is set because it points at a managed database
	if secrets.DatabaseURL == "" {
		if !validDBName.MatchString(dbname) {
			return nil, fmt.Errorf("refusing to use database with name %q", dbname)
		}

		sqlHost := secrets.SQL.SqlHost
		// slightly silly logic to add port if missing
		if !strings.Contains(sqlHost, ":") {
			sqlHost += ":5432"
		}

		err := ensureDBExistsInPostgres(sqlHost, dbname, secrets.SQL)
		if err != nil {
			return nil, err
		}

		pgconn = pgdriver.NewConnector(
			pgdriver.WithAddr(sqlHost),
			pgdriver.WithInsecure(true),
			pgdriver.WithUser(secrets.SQL.SqlUsername),
			pgdriver.WithPassword(secrets.SQL.SqlPassword),
			pgdriver.WithDatabase(dbname),
		)
	} else {
		// this panics if its invalid
		pgconn = pgdriver.NewConnector(pgdriver.WithDSN(secrets.DatabaseURL))
	}

	db := sql.OpenDB(pgconn)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return bun.NewDB(db, pgdialect.New()), nil
}

// CreateSqliteClient opens a sqlite database file, or an in memory one for ":memory:" style DSNs
func CreateSqliteClient(dsn string) (*bun.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite only supports a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return bun.NewDB(db, sqlitedialect.New()), nil
}

func ensureDBExistsInPostgres(addr, dbname string, secrets config.SqlSecrets) error {
	pgconn := pgdriver.NewConnector(
		pgdriver.WithAddr(addr),
		pgdriver.WithInsecure(true),
		pgdriver.WithUser(secrets.SqlUsername),
		pgdriver.WithPassword(secrets.SqlPassword),
		pgdriver.WithDatabase("postgres"),
	)

	db := sql.OpenDB(pgconn)
	defer db.Close()

	rows, err := db.Query("SELECT datname FROM pg_database WHERE datname = $1", dbname)
	if err != nil {
		return fmt.Errorf("failed to get list of databases: %w", err)
	}
	defer rows.Close()

	// next meaning there is a row, all we care about is if there is a row
	if !rows.Next() {
		klog.Infof("Creating database %s in postgres database\n", dbname)
		_, err := db.Exec(fmt.Sprintf("CREATE DATABASE %q", dbname))
		if err != nil {
			return fmt.Errorf("failed to create database %s: %w", dbname, err)
		}
	}

	return nil
}
