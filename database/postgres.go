package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/actionos/actionos-backend/shared"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Store is the Postgres-backed store client. It is constructed once at
// startup and injected into each service; there is no package-level
// singleton.
type Store struct {
	db *sql.DB
}

// Connect opens a connection pool to the store using default pool settings.
func Connect(dbURL string) (*Store, error) {
	config := shared.NewDefaultUnifiedConfiguration().Database
	return ConnectWithConfig(dbURL, &config)
}

// ConnectWithConfig opens a connection pool with custom pool configuration.
func ConnectWithConfig(dbURL string, config *shared.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open_conns":     config.MaxOpenConns,
		"max_idle_conns":     config.MaxIdleConns,
		"conn_max_lifetime":  config.ConnMaxLifetime,
		"conn_max_idle_time": config.ConnMaxIdleTime,
	}).Info("Connected to database")

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		logrus.Info("Database connection closed")
	}
}

// HealthCheck verifies the store is reachable and the pool is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection not established")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	stats := s.db.Stats()
	logrus.WithFields(logrus.Fields{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration,
	}).Debug("Database connection pool health check")

	return nil
}

// Stats returns current connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	if s.db == nil {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// Migrate applies the schema file statement by statement. Statements that
// fail (e.g. objects that already exist) are logged and skipped so the
// schema file stays re-runnable.
func (s *Store) Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	statements := parseSQLStatements(string(content))

	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)

		if stmt == "" {
			continue
		}

		if _, err = s.db.Exec(stmt); err != nil {
			logrus.Warnf("Migration statement failed (continuing): %v", err)
		}
	}

	logrus.Info("Database migration completed")
	return nil
}

// parseSQLStatements parses SQL content into individual statements,
// handling multi-line statements and comment-only lines.
func parseSQLStatements(content string) []string {
	var statements []string
	var currentStatement strings.Builder

	lines := strings.Split(content, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if currentStatement.Len() > 0 {
			currentStatement.WriteString(" ")
		}
		currentStatement.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSuffix(currentStatement.String(), ";")
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				statements = append(statements, stmt)
			}
			currentStatement.Reset()
		}
	}

	if currentStatement.Len() > 0 {
		stmt := strings.TrimSpace(currentStatement.String())
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	return statements
}

// Postgres error codes surfaced as tagged variants.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// translateError converts driver-level failures into the closed set of
// tagged store errors so callers never match on message text.
func translateError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if err == sql.ErrNoRows {
		return shared.NewStoreError(shared.StoreErrNotFound, operation+": row not found", err)
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return shared.NewStoreError(shared.StoreErrUniqueViolation, operation+": unique constraint violated", err)
		case pgCheckViolation:
			return shared.NewStoreError(shared.StoreErrCheckViolation, operation+": check constraint violated", err)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}
