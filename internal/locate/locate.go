// Package locate resolves the filesystem locations of the encrypted
// secrets container and the decryption identity.
//
// Each of the two paths is resolved independently through the same
// precedence chain: explicit override, then environment variable, then
// the fixed default under the user's configuration directory. The first
// populated source wins outright; if its file is missing or unreadable
// that is an error, never a fall-through to the next tier.
package locate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jkaninda/duck-rage/internal/config"
)

// Locations holds the two resolved absolute paths for one resolution.
type Locations struct {
	SecretsFile  string
	IdentityFile string
}

// Locator resolves locations against an injectable environment. Nil
// fields fall back to the os package, so the zero value resolves
// against the real process environment.
type Locator struct {
	Getenv        func(string) string
	UserConfigDir func() (string, error)
}

// Resolve applies the precedence chain to both paths. Overrides may be
// empty; an empty or unset environment variable counts as unpopulated.
func (l *Locator) Resolve(secretsOverride, identityOverride string) (Locations, error) {
	secretsFile, err := l.resolve(secretsOverride, config.EnvSecretsFile, config.SecretsFileName, "secrets file")
	if err != nil {
		return Locations{}, err
	}
	identityFile, err := l.resolve(identityOverride, config.EnvIdentityFile, config.IdentityFileName, "identity file")
	if err != nil {
		return Locations{}, err
	}
	return Locations{SecretsFile: secretsFile, IdentityFile: identityFile}, nil
}

func (l *Locator) resolve(override, envVar, defaultName, what string) (string, error) {
	if override != "" {
		path, err := config.ExpandPath(override)
		if err != nil {
			return "", fmt.Errorf("resolving %s %s: %w", what, override, err)
		}
		if err := checkFile(path, what); err != nil {
			return "", err
		}
		return path, nil
	}

	if env := l.getenv(envVar); env != "" {
		path, err := config.ExpandPath(env)
		if err != nil {
			return "", fmt.Errorf("resolving %s from %s: %w", what, envVar, err)
		}
		if err := checkFile(path, what); err != nil {
			return "", err
		}
		return path, nil
	}

	base, err := l.userConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir for default %s: %w (set %s or pass an explicit path)", what, err, envVar)
	}
	path := filepath.Join(base, config.AppDirName, defaultName)
	if err := checkFile(path, what); err != nil {
		return "", fmt.Errorf("%w (set %s or pass an explicit path)", err, envVar)
	}
	return path, nil
}

// checkFile verifies the winning path points at a readable regular file.
func checkFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s %s: is a directory", what, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return f.Close()
}

func (l *Locator) getenv(key string) string {
	if l.Getenv != nil {
		return l.Getenv(key)
	}
	return os.Getenv(key)
}

func (l *Locator) userConfigDir() (string, error) {
	if l.UserConfigDir != nil {
		return l.UserConfigDir()
	}
	return os.UserConfigDir()
}
