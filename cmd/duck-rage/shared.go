package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/duck-rage/internal/config"
	"github.com/jkaninda/duck-rage/internal/credential"
	"github.com/jkaninda/duck-rage/internal/decrypt"
	"github.com/jkaninda/duck-rage/internal/duckdb"
)

// Exit codes for the register command.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitSecretNotFound = 2
	ExitUnavailable    = 3
)

// newLogger builds the JSON logger all commands share. RAGE_LOG_LEVEL
// selects the level (debug, info, warn, error); default info.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(goutils.Env(config.EnvLogLevel, "")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// connParams carries the connection flags shared by register and
// refresh, before profile merging and defaulting.
type connParams struct {
	dbType       string
	host         string
	port         int
	database     string
	user         string
	secretKey    string
	secretsFile  string
	identityFile string
}

// buildRequest merges an optional profile with explicit flag values into
// a resolution request. Explicit flags win over profile values; the port
// defaults per kind and the secret key defaults to the connection user.
func buildRequest(p connParams, prof *config.Profile) (credential.Request, error) {
	var req credential.Request

	kindName := p.dbType
	if prof != nil {
		req.Host = prof.Host
		req.Port = prof.Port
		req.Database = prof.Database
		req.User = prof.User
		req.SecretKey = prof.SecretKey
		req.SecretsFile = prof.SecretsFile
		req.IdentityFile = prof.IdentityFile
		if kindName == "" {
			kindName = prof.Kind
		}
	}
	if kindName == "" {
		return credential.Request{}, fmt.Errorf("database kind is required (use --db-type or a profile)")
	}
	kind, err := credential.ParseKind(kindName)
	if err != nil {
		return credential.Request{}, err
	}
	req.Kind = kind

	if p.host != "" {
		req.Host = p.host
	}
	if p.port > 0 {
		req.Port = p.port
	}
	if p.database != "" {
		req.Database = p.database
	}
	if p.user != "" {
		req.User = p.user
	}
	if p.secretKey != "" {
		req.SecretKey = p.secretKey
	}
	if p.secretsFile != "" {
		req.SecretsFile = p.secretsFile
	}
	if p.identityFile != "" {
		req.IdentityFile = p.identityFile
	}

	if req.Port == 0 {
		req.Port = kind.DefaultPort()
	}
	if req.SecretKey == "" {
		req.SecretKey = req.User
	}

	return req, nil
}

// loadProfile loads the profiles file and returns the named profile.
// RAGE_CONFIG overrides the configured path.
func loadProfile(configPath, name string) (*config.Profile, error) {
	cfg, err := config.Load(goutils.Env(config.EnvConfig, configPath))
	if err != nil {
		return nil, err
	}
	prof, err := cfg.Profile(name)
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

// newDecryptor builds the decryption capability: the built-in age
// implementation, or an external command such as "age" or "rage --quiet"
// when --decrypt-command is set. The command receives the container on
// stdin plus -d -i <identity-file>.
func newDecryptor(command string) decrypt.Decryptor {
	if command == "" {
		return decrypt.AgeDecryptor{}
	}
	parts := strings.Fields(command)
	return &decrypt.CommandDecryptor{Path: parts[0], Args: parts[1:]}
}

// openSink opens the DuckDB handle and wraps it as a secret sink. An
// empty path opens an in-memory instance, which still writes persistent
// secrets to the secret directory.
func openSink(path, secretDir string, persistent bool, logger *slog.Logger) (*duckdb.SecretSink, *sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening duckdb %s: %w", path, err)
	}
	sink := &duckdb.SecretSink{
		DB:         db,
		Persistent: persistent,
		SecretDir:  secretDir,
		Logger:     logger,
	}
	return sink, db, nil
}

// verifyConnection opens a real connection to the target database and
// pings it. The DSN embeds the secret value and is never logged.
func verifyConnection(ctx context.Context, rec credential.Record) error {
	var driver, dsn string
	switch rec.Kind {
	case credential.KindPostgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(rec.User, rec.SecretValue),
			Host:   fmt.Sprintf("%s:%d", rec.Host, rec.Port),
			Path:   "/" + rec.Database,
		}
		driver, dsn = "pgx", u.String()
	case credential.KindMySQL:
		mc := mysql.NewConfig()
		mc.User = rec.User
		mc.Passwd = rec.SecretValue
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", rec.Host, rec.Port)
		mc.DBName = rec.Database
		driver, dsn = "mysql", mc.FormatDSN()
	default:
		return fmt.Errorf("cannot verify %s connections", rec.Kind)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("opening %s connection: %w", rec.Kind, err)
	}
	defer db.Close()

	return db.PingContext(ctx)
}
