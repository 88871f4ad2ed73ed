// Package credential defines the request and record types of the
// resolution pipeline: what the caller asks for, and the finished
// connection credential handed to a registration sink.
package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind identifies the database backend a credential is for.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
)

// ParseKind maps user input to a Kind. Matching is case-insensitive and
// "postgresql" is accepted as an alias for postgres.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql":
		return KindPostgres, nil
	case "mysql":
		return KindMySQL, nil
	default:
		return "", fmt.Errorf("unknown database kind %q (supported: postgres, mysql)", s)
	}
}

func (k Kind) String() string { return string(k) }

// DefaultPort returns the conventional port for the kind, used when the
// caller does not supply one.
func (k Kind) DefaultPort() int {
	switch k {
	case KindPostgres:
		return 5432
	case KindMySQL:
		return 3306
	default:
		return 0
	}
}

// Request is the caller's intent for one resolution. It is treated as
// immutable for the duration of the resolution that owns it.
type Request struct {
	Kind      Kind
	Host      string
	Port      int
	Database  string
	User      string
	SecretKey string

	// SecretsFile and IdentityFile, when set, take precedence over the
	// environment variables and default locations.
	SecretsFile  string
	IdentityFile string
}

const secretNamePrefix = "duck_rage_"

// SecretName derives the registration name for a database's credential.
// It is a pure function of the database name alone, so repeated
// resolutions for the same database address the same registered secret.
func SecretName(database string) string {
	return strings.ToLower(secretNamePrefix + database)
}

// Record is the assembled credential. SecretValue is the decrypted
// password: a Record must never be serialized, persisted, or logged
// directly. String and LogValue render every field except the value.
type Record struct {
	SecretName  string
	Kind        Kind
	Host        string
	Port        int
	Database    string
	User        string
	SecretValue string
}

// Assemble validates the request's connection parameters and combines
// them with the looked-up secret value. Host, port, user, and database
// pass through unchanged.
func Assemble(req Request, secretValue string) (Record, error) {
	switch req.Kind {
	case KindPostgres, KindMySQL:
	default:
		return Record{}, fmt.Errorf("unknown database kind %q (supported: postgres, mysql)", string(req.Kind))
	}
	if req.Host == "" {
		return Record{}, errors.New("host is required")
	}
	if req.Port < 1 || req.Port > 65535 {
		return Record{}, fmt.Errorf("port %d out of range (1-65535)", req.Port)
	}
	if req.Database == "" {
		return Record{}, errors.New("database is required")
	}
	if req.User == "" {
		return Record{}, errors.New("user is required")
	}

	return Record{
		SecretName:  SecretName(req.Database),
		Kind:        req.Kind,
		Host:        req.Host,
		Port:        req.Port,
		Database:    req.Database,
		User:        req.User,
		SecretValue: secretValue,
	}, nil
}

// String renders the record without its secret value.
func (r Record) String() string {
	return fmt.Sprintf("%s [%s] %s@%s:%d/%s", r.SecretName, r.Kind, r.User, r.Host, r.Port, r.Database)
}

// LogValue keeps the secret value out of structured logs.
func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("secret_name", r.SecretName),
		slog.String("kind", string(r.Kind)),
		slog.String("host", r.Host),
		slog.Int("port", r.Port),
		slog.String("database", r.Database),
		slog.String("user", r.User),
	)
}
