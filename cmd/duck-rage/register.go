package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/duck-rage/internal/config"
	"github.com/jkaninda/duck-rage/internal/resolver"
)

var (
	registerConfigPath   string
	registerProfile      string
	registerDBType       string
	registerHost         string
	registerPort         int
	registerDatabase     string
	registerUser         string
	registerSecretKey    string
	registerSecretsFile  string
	registerIdentityFile string
	registerDecryptCmd   string
	registerDuckDB       string
	registerSecretDir    string
	registerPersistent   bool
	registerVerify       bool
	registerDryRun       bool
	registerTimeout      int
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Resolve a credential and register it as a DuckDB secret",
	Long: `Resolve a database credential from the age-encrypted secret store and
register it as a DuckDB secret named duck_rage_<database>.

The secrets container and identity file are located by precedence:
explicit flags, then RAGE_SECRETS_FILE / RAGE_IDENTITY_FILE, then
<config-dir>/duck-rage/{secrets.age,identity.txt}.

Examples:
  duck-rage register --db-type postgres --host db.internal --database appdb \
      --user appuser
  duck-rage register --profile prod --verify
  duck-rage register --profile prod --dry-run

Exit codes:
  0  success
  1  resolution failure
  2  secret not found in the store
  3  DuckDB or target database unavailable`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerConfigPath, "config", config.DefaultPath(), "path to profiles file")
	registerCmd.Flags().StringVar(&registerProfile, "profile", "", "profile to take connection parameters from")
	registerCmd.Flags().StringVar(&registerDBType, "db-type", "", "database kind: postgres or mysql")
	registerCmd.Flags().StringVar(&registerHost, "host", "", "database host")
	registerCmd.Flags().IntVar(&registerPort, "port", 0, "database port (default 5432 for postgres, 3306 for mysql)")
	registerCmd.Flags().StringVar(&registerDatabase, "database", "", "database name")
	registerCmd.Flags().StringVar(&registerUser, "user", "", "connection user")
	registerCmd.Flags().StringVar(&registerSecretKey, "secret-key", "", "key to look up in the secret store (default: user)")
	registerCmd.Flags().StringVar(&registerSecretsFile, "secrets-file", "", "path to the encrypted secrets container")
	registerCmd.Flags().StringVar(&registerIdentityFile, "identity-file", "", "path to the age identity file")
	registerCmd.Flags().StringVar(&registerDecryptCmd, "decrypt-command", "", "external decryption command (default: built-in age)")
	registerCmd.Flags().StringVar(&registerDuckDB, "duckdb", "", "DuckDB database path (or RAGE_DUCKDB; default in-memory)")
	registerCmd.Flags().StringVar(&registerSecretDir, "secret-dir", "", "DuckDB secret_directory for persistent secrets")
	registerCmd.Flags().BoolVar(&registerPersistent, "persistent", true, "create a PERSISTENT secret")
	registerCmd.Flags().BoolVar(&registerVerify, "verify", false, "ping the target database before registering")
	registerCmd.Flags().BoolVar(&registerDryRun, "dry-run", false, "resolve and print the redacted record without touching DuckDB")
	registerCmd.Flags().IntVar(&registerTimeout, "timeout", 30, "timeout in seconds")
}

func runRegister(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(registerTimeout)*time.Second)
	defer cancel()

	status, code, err := doRegister(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(code)
	}
	fmt.Println(status)
	return nil
}

// doRegister runs resolve → verify → register and keeps all resource
// cleanup inside this frame so runRegister can os.Exit safely.
func doRegister(ctx context.Context, logger *slog.Logger) (status string, code int, err error) {
	var prof *config.Profile
	if registerProfile != "" {
		prof, err = loadProfile(registerConfigPath, registerProfile)
		if err != nil {
			return "", ExitFailure, err
		}
	}

	req, err := buildRequest(connParams{
		dbType:       registerDBType,
		host:         registerHost,
		port:         registerPort,
		database:     registerDatabase,
		user:         registerUser,
		secretKey:    registerSecretKey,
		secretsFile:  registerSecretsFile,
		identityFile: registerIdentityFile,
	}, prof)
	if err != nil {
		return "", ExitFailure, err
	}

	res := resolver.New(newDecryptor(registerDecryptCmd), logger)
	rec, err := res.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, resolver.ErrSecretNotFound) {
			return "", ExitSecretNotFound, err
		}
		return "", ExitFailure, err
	}

	if registerDryRun {
		return fmt.Sprintf("dry-run: would register %s", rec), ExitSuccess, nil
	}

	if registerVerify {
		if err := verifyConnection(ctx, rec); err != nil {
			return "", ExitUnavailable, fmt.Errorf("verifying %s@%s:%d/%s: %w",
				rec.User, rec.Host, rec.Port, rec.Database, err)
		}
		logger.Info("connection verified",
			slog.String("host", rec.Host),
			slog.String("database", rec.Database),
			slog.String("user", rec.User),
		)
	}

	sink, db, err := openSink(goutils.Env(config.EnvDuckDB, registerDuckDB), registerSecretDir, registerPersistent, logger)
	if err != nil {
		return "", ExitUnavailable, err
	}
	defer db.Close()

	status, err = sink.Register(ctx, rec)
	if err != nil {
		return "", ExitUnavailable, err
	}
	return status, ExitSuccess, nil
}
