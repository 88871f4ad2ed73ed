package decrypt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// CommandDecryptor shells out to an age-compatible binary (rage, age)
// instead of decrypting in process. Useful when identities live on
// hardware tokens or in an agent only the external tool can reach.
// The container is piped to stdin and cleartext read from stdout.
type CommandDecryptor struct {
	// Path is the binary to run, e.g. "rage".
	Path string
	// Args are extra arguments placed before the decrypt flags.
	Args []string
}

func (d *CommandDecryptor) Decrypt(ctx context.Context, container []byte, identityFile string) ([]byte, error) {
	if d.Path == "" {
		return nil, errors.New("decrypt command is empty")
	}

	args := append(slices.Clone(d.Args), "-d", "-i", identityFile)
	cmd := exec.CommandContext(ctx, d.Path, args...)
	cmd.Stdin = bytes.NewReader(container)
	// Don't block on inherited pipes after the process is killed.
	cmd.WaitDelay = 3 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", d.Path, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", d.Path, err)
	}
	return stdout.Bytes(), nil
}
