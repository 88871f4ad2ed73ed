package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jkaninda/duck-rage/internal/credential"
	"github.com/jkaninda/duck-rage/internal/resolver"
)

const storeFixture = `{"appuser": "pw1", "reader": "pw2"}`

type fakeDecryptor struct{}

func (fakeDecryptor) Decrypt(context.Context, []byte, string) ([]byte, error) {
	return slices.Clone([]byte(storeFixture)), nil
}

type countingSink struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSink) Register(_ context.Context, rec credential.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "Secret '" + rec.SecretName + "' created", nil
}

func (s *countingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(t *testing.T, name, database, secretKey string) Job {
	t.Helper()
	dir := t.TempDir()
	secretsFile := filepath.Join(dir, "secrets.age")
	identityFile := filepath.Join(dir, "identity.txt")
	for _, path := range []string{secretsFile, identityFile} {
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	return Job{
		Name: name,
		Request: credential.Request{
			Kind:         credential.KindPostgres,
			Host:         "localhost",
			Port:         5432,
			Database:     database,
			User:         "svc",
			SecretKey:    secretKey,
			SecretsFile:  secretsFile,
			IdentityFile: identityFile,
		},
	}
}

func newRunner(jobs []Job, sink resolver.Sink, metrics *Metrics) *Runner {
	res := &resolver.Resolver{
		Decryptor: fakeDecryptor{},
		Getenv:    func(string) string { return "" },
	}
	return New(res, sink, jobs, metrics, discardLogger())
}

func TestCycleRegistersAllJobs(t *testing.T) {
	jobs := []Job{
		newJob(t, "app", "appdb", "appuser"),
		newJob(t, "reporting", "reports", "reader"),
	}
	sink := &countingSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	runner := newRunner(jobs, sink, metrics)

	runner.cycle(context.Background())

	if sink.Calls() != 2 {
		t.Errorf("sink calls = %d, want 2", sink.Calls())
	}
	if !runner.Healthy() {
		t.Error("Healthy() = false after clean cycle, want true")
	}
	if got := testutil.ToFloat64(metrics.Refreshed); got != 2 {
		t.Errorf("secrets_refreshed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.Cycles); got != 1 {
		t.Errorf("cycles_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Failures); got != 0 {
		t.Errorf("failures_total = %v, want 0", got)
	}
}

// One failing job must not stop the rest of the cycle.
func TestCycleContinuesPastFailures(t *testing.T) {
	jobs := []Job{
		newJob(t, "broken", "appdb", "no_such_key"),
		newJob(t, "ok", "reports", "reader"),
	}
	sink := &countingSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	runner := newRunner(jobs, sink, metrics)

	runner.cycle(context.Background())

	if sink.Calls() != 1 {
		t.Errorf("sink calls = %d, want 1 (only the healthy job)", sink.Calls())
	}
	if runner.Healthy() {
		t.Error("Healthy() = true after failing cycle, want false")
	}
	if got := testutil.ToFloat64(metrics.Failures); got != 1 {
		t.Errorf("failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Refreshed); got != 1 {
		t.Errorf("secrets_refreshed_total = %v, want 1", got)
	}
}

func TestCycleSinkFailure(t *testing.T) {
	jobs := []Job{newJob(t, "app", "appdb", "appuser")}
	sink := &countingSink{err: errors.New("catalog gone")}
	runner := newRunner(jobs, sink, nil)

	runner.cycle(context.Background())

	if runner.Healthy() {
		t.Error("Healthy() = true after sink failure, want false")
	}
}

func TestHealthyBeforeFirstCycle(t *testing.T) {
	runner := newRunner(nil, &countingSink{}, nil)
	if runner.Healthy() {
		t.Error("Healthy() = true before any cycle, want false")
	}
}

// Run fires an immediate cycle and stops cleanly on cancellation.
func TestRunImmediateCycleAndStop(t *testing.T) {
	jobs := []Job{newJob(t, "app", "appdb", "appuser")}
	sink := &countingSink{}
	runner := newRunner(jobs, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, "@every 1h") }()

	deadline := time.Now().Add(2 * time.Second)
	for sink.Calls() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("no registration within 2s of Run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	runner := newRunner(nil, &countingSink{}, nil)

	err := runner.Run(context.Background(), "every once in a while")
	if err == nil {
		t.Fatal("Run() error = nil, want schedule parse failure")
	}
	if !strings.Contains(err.Error(), "parsing schedule") {
		t.Errorf("Run() error = %q, want schedule parse context", err)
	}
}

func TestNewMetricsNilRegistry(t *testing.T) {
	if m := NewMetrics(nil); m != nil {
		t.Errorf("NewMetrics(nil) = %v, want nil", m)
	}
}
