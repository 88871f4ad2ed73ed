package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/jkaninda/duck-rage/internal/config"
	"github.com/jkaninda/duck-rage/internal/refresh"
	"github.com/jkaninda/duck-rage/internal/resolver"
)

var (
	refreshConfigPath   string
	refreshProfiles     []string
	refreshAll          bool
	refreshSchedule     string
	refreshListenAddr   string
	refreshDBType       string
	refreshHost         string
	refreshPort         int
	refreshDatabase     string
	refreshUser         string
	refreshSecretKey    string
	refreshSecretsFile  string
	refreshIdentityFile string
	refreshDecryptCmd   string
	refreshDuckDB       string
	refreshSecretDir    string
	refreshPersistent   bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Periodically re-resolve and re-register secrets",
	Long: `Run the resolution pipeline on a schedule so rotated passwords propagate
to DuckDB without restarting consumers. Nothing is cached between cycles;
every cycle locates and decrypts the store fresh.

Jobs come from profiles (--all or repeated --profile) or from the plain
connection flags for a single ad-hoc job.

Examples:
  duck-rage refresh --all --schedule "@every 15m"
  duck-rage refresh --profile prod --profile staging --schedule "0 * * * *" \
      --listen-addr :9090`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshConfigPath, "config", config.DefaultPath(), "path to profiles file")
	refreshCmd.Flags().StringSliceVar(&refreshProfiles, "profile", nil, "profile to refresh (repeatable)")
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every profile in the config")
	refreshCmd.Flags().StringVar(&refreshSchedule, "schedule", "@every 5m", "cron schedule (standard 5-field, @hourly, @every 1h)")
	refreshCmd.Flags().StringVar(&refreshListenAddr, "listen-addr", "", "serve /healthz, /readyz and /metrics on this address")
	refreshCmd.Flags().StringVar(&refreshDBType, "db-type", "", "database kind: postgres or mysql")
	refreshCmd.Flags().StringVar(&refreshHost, "host", "", "database host")
	refreshCmd.Flags().IntVar(&refreshPort, "port", 0, "database port (default 5432 for postgres, 3306 for mysql)")
	refreshCmd.Flags().StringVar(&refreshDatabase, "database", "", "database name")
	refreshCmd.Flags().StringVar(&refreshUser, "user", "", "connection user")
	refreshCmd.Flags().StringVar(&refreshSecretKey, "secret-key", "", "key to look up in the secret store (default: user)")
	refreshCmd.Flags().StringVar(&refreshSecretsFile, "secrets-file", "", "path to the encrypted secrets container")
	refreshCmd.Flags().StringVar(&refreshIdentityFile, "identity-file", "", "path to the age identity file")
	refreshCmd.Flags().StringVar(&refreshDecryptCmd, "decrypt-command", "", "external decryption command (default: built-in age)")
	refreshCmd.Flags().StringVar(&refreshDuckDB, "duckdb", "", "DuckDB database path (or RAGE_DUCKDB; default in-memory)")
	refreshCmd.Flags().StringVar(&refreshSecretDir, "secret-dir", "", "DuckDB secret_directory for persistent secrets")
	refreshCmd.Flags().BoolVar(&refreshPersistent, "persistent", true, "create PERSISTENT secrets")
}

func runRefresh(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	jobs, err := refreshJobs()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, db, err := openSink(goutils.Env(config.EnvDuckDB, refreshDuckDB), refreshSecretDir, refreshPersistent, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	metrics := refresh.NewMetrics(registry)

	res := resolver.New(newDecryptor(refreshDecryptCmd), logger)
	runner := refresh.New(res, sink, jobs, metrics, logger)

	if refreshListenAddr != "" {
		admin := refresh.NewAdmin(runner, registry, refreshListenAddr, logger)
		go func() {
			if err := admin.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin endpoint exited", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := admin.Stop(shutdownCtx); err != nil {
				logger.Error("stopping admin endpoint", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("refresh runner starting",
		slog.Int("jobs", len(jobs)),
		slog.String("schedule", refreshSchedule),
	)
	return runner.Run(ctx, refreshSchedule)
}

// refreshJobs builds the job list from profiles or the ad-hoc flags.
func refreshJobs() ([]refresh.Job, error) {
	if refreshAll || len(refreshProfiles) > 0 {
		cfg, err := config.Load(goutils.Env(config.EnvConfig, refreshConfigPath))
		if err != nil {
			return nil, err
		}
		names := refreshProfiles
		if refreshAll {
			names = cfg.Names()
		}
		jobs := make([]refresh.Job, 0, len(names))
		for _, name := range names {
			prof, err := cfg.Profile(name)
			if err != nil {
				return nil, err
			}
			req, err := buildRequest(connParams{}, &prof)
			if err != nil {
				return nil, fmt.Errorf("profile %q: %w", name, err)
			}
			jobs = append(jobs, refresh.Job{Name: name, Request: req})
		}
		return jobs, nil
	}

	if refreshDatabase == "" {
		return nil, fmt.Errorf("no refresh jobs: use --all, --profile, or the connection flags")
	}
	req, err := buildRequest(connParams{
		dbType:       refreshDBType,
		host:         refreshHost,
		port:         refreshPort,
		database:     refreshDatabase,
		user:         refreshUser,
		secretKey:    refreshSecretKey,
		secretsFile:  refreshSecretsFile,
		identityFile: refreshIdentityFile,
	}, nil)
	if err != nil {
		return nil, err
	}
	return []refresh.Job{{Name: req.Database, Request: req}}, nil
}
