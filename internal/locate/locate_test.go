package locate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jkaninda/duck-rage/internal/config"
)

// testSetup lays out three candidate secrets files (override, env,
// default) plus a default identity file, and returns a Locator wired to
// the fake environment.
type testSetup struct {
	locator      *Locator
	override     string
	envPath      string
	defaultPath  string
	identityPath string
}

func newSetup(t *testing.T) *testSetup {
	t.Helper()
	root := t.TempDir()

	appDir := filepath.Join(root, "cfg", config.AppDirName)
	if err := os.MkdirAll(appDir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := &testSetup{
		override:     filepath.Join(root, "override.age"),
		envPath:      filepath.Join(root, "env.age"),
		defaultPath:  filepath.Join(appDir, config.SecretsFileName),
		identityPath: filepath.Join(appDir, config.IdentityFileName),
	}
	for _, path := range []string{s.override, s.envPath, s.defaultPath, s.identityPath} {
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}

	env := map[string]string{config.EnvSecretsFile: s.envPath}
	s.locator = &Locator{
		Getenv:        func(key string) string { return env[key] },
		UserConfigDir: func() (string, error) { return filepath.Join(root, "cfg"), nil },
	}
	return s
}

func TestOverrideBeatsEnvAndDefault(t *testing.T) {
	s := newSetup(t)

	locs, err := s.locator.Resolve(s.override, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.override {
		t.Errorf("SecretsFile = %q, want override %q", locs.SecretsFile, s.override)
	}
}

func TestEnvBeatsDefault(t *testing.T) {
	s := newSetup(t)

	locs, err := s.locator.Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.envPath {
		t.Errorf("SecretsFile = %q, want env path %q", locs.SecretsFile, s.envPath)
	}
}

func TestDefaultUsedWhenNothingSet(t *testing.T) {
	s := newSetup(t)
	s.locator.Getenv = func(string) string { return "" }

	locs, err := s.locator.Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.defaultPath {
		t.Errorf("SecretsFile = %q, want default %q", locs.SecretsFile, s.defaultPath)
	}
	if locs.IdentityFile != s.identityPath {
		t.Errorf("IdentityFile = %q, want default %q", locs.IdentityFile, s.identityPath)
	}
}

// The two paths run independent chains: the secrets file may come from
// the environment while the identity file falls back to its default.
func TestPathsResolveIndependently(t *testing.T) {
	s := newSetup(t)

	locs, err := s.locator.Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.envPath {
		t.Errorf("SecretsFile = %q, want env path %q", locs.SecretsFile, s.envPath)
	}
	if locs.IdentityFile != s.identityPath {
		t.Errorf("IdentityFile = %q, want default %q", locs.IdentityFile, s.identityPath)
	}
}

// A populated source wins outright: a missing override must error even
// though the env and default files exist.
func TestMissingOverrideDoesNotFallBack(t *testing.T) {
	s := newSetup(t)
	missing := filepath.Join(t.TempDir(), "nope.age")

	_, err := s.locator.Resolve(missing, "")
	if err == nil {
		t.Fatal("Resolve() error = nil, want error for missing override")
	}
	if !strings.Contains(err.Error(), "secrets file") {
		t.Errorf("Resolve() error = %q, want it to name the secrets file", err)
	}
}

func TestMissingEnvPathDoesNotFallBack(t *testing.T) {
	s := newSetup(t)
	env := map[string]string{config.EnvSecretsFile: filepath.Join(t.TempDir(), "nope.age")}
	s.locator.Getenv = func(key string) string { return env[key] }

	if _, err := s.locator.Resolve("", ""); err == nil {
		t.Fatal("Resolve() error = nil, want error for missing env path")
	}
}

func TestEmptyEnvCountsAsUnset(t *testing.T) {
	s := newSetup(t)
	env := map[string]string{config.EnvSecretsFile: ""}
	s.locator.Getenv = func(key string) string { return env[key] }

	locs, err := s.locator.Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.defaultPath {
		t.Errorf("SecretsFile = %q, want default %q", locs.SecretsFile, s.defaultPath)
	}
}

func TestMissingDefaultMentionsEnvVar(t *testing.T) {
	s := newSetup(t)
	s.locator.Getenv = func(string) string { return "" }
	if err := os.Remove(s.defaultPath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := s.locator.Resolve("", "")
	if err == nil {
		t.Fatal("Resolve() error = nil, want error for missing default")
	}
	if !strings.Contains(err.Error(), config.EnvSecretsFile) {
		t.Errorf("Resolve() error = %q, want it to mention %s", err, config.EnvSecretsFile)
	}
}

func TestDirectoryRejected(t *testing.T) {
	s := newSetup(t)

	_, err := s.locator.Resolve(t.TempDir(), "")
	if err == nil {
		t.Fatal("Resolve() error = nil, want error for directory")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Errorf("Resolve() error = %q, want %q", err, "is a directory")
	}
}

func TestNoConfigDir(t *testing.T) {
	s := newSetup(t)
	s.locator.Getenv = func(string) string { return "" }
	s.locator.UserConfigDir = func() (string, error) { return "", os.ErrNotExist }

	if _, err := s.locator.Resolve("", ""); err == nil {
		t.Fatal("Resolve() error = nil, want error when config dir is unavailable")
	}
}

func TestZeroValueUsesProcessEnv(t *testing.T) {
	s := newSetup(t)
	t.Setenv(config.EnvSecretsFile, s.envPath)
	t.Setenv(config.EnvIdentityFile, s.identityPath)

	var l Locator
	locs, err := l.Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if locs.SecretsFile != s.envPath {
		t.Errorf("SecretsFile = %q, want %q", locs.SecretsFile, s.envPath)
	}
	if locs.IdentityFile != s.identityPath {
		t.Errorf("IdentityFile = %q, want %q", locs.IdentityFile, s.identityPath)
	}
}
