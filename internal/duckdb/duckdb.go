// Package duckdb registers resolved credentials with a DuckDB instance
// as SQL secrets, using CREATE OR REPLACE so re-registration of the
// same secret name overwrites rather than duplicates.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jkaninda/duck-rage/internal/credential"
)

// Execer is the slice of *sql.DB the sink needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SecretSink writes credential records into DuckDB's secret manager.
// Persistent secrets outlive the session in DuckDB's secret storage;
// SecretDir, when set, points that storage at a different directory
// before registration.
type SecretSink struct {
	DB         Execer
	Persistent bool
	SecretDir  string
	Logger     *slog.Logger
}

// Register creates or replaces the secret named by the record and
// returns a one-line status. The statement text embeds the password and
// must never be logged; only redacted fields reach the log.
func (s *SecretSink) Register(ctx context.Context, rec credential.Record) (string, error) {
	if s.SecretDir != "" {
		stmt := "SET secret_directory = " + quoteString(s.SecretDir)
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("setting secret directory %s: %w", s.SecretDir, err)
		}
	}

	if _, err := s.DB.ExecContext(ctx, createSecretSQL(rec, s.Persistent)); err != nil {
		return "", fmt.Errorf("creating secret %s: %w", rec.SecretName, err)
	}

	s.logger().InfoContext(ctx, "secret registered",
		slog.String("secret_name", rec.SecretName),
		slog.String("kind", string(rec.Kind)),
		slog.String("host", rec.Host),
		slog.String("database", rec.Database),
		slog.Bool("persistent", s.Persistent),
	)

	return fmt.Sprintf("Secret '%s' created for %s@%s:%d/%s",
		rec.SecretName, rec.User, rec.Host, rec.Port, rec.Database), nil
}

// createSecretSQL builds the registration statement. The secret name is
// quoted as an identifier and every string parameter as a literal, so
// caller-supplied values cannot break out of the statement.
func createSecretSQL(rec credential.Record, persistent bool) string {
	var b strings.Builder
	b.WriteString("CREATE OR REPLACE ")
	if persistent {
		b.WriteString("PERSISTENT ")
	}
	b.WriteString("SECRET ")
	b.WriteString(quoteIdent(rec.SecretName))
	b.WriteString(" (TYPE ")
	b.WriteString(string(rec.Kind))
	b.WriteString(", HOST ")
	b.WriteString(quoteString(rec.Host))
	fmt.Fprintf(&b, ", PORT %d", rec.Port)
	b.WriteString(", DATABASE ")
	b.WriteString(quoteString(rec.Database))
	b.WriteString(", USER ")
	b.WriteString(quoteString(rec.User))
	b.WriteString(", PASSWORD ")
	b.WriteString(quoteString(rec.SecretValue))
	b.WriteString(")")
	return b.String()
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (s *SecretSink) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
