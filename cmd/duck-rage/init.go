package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/jkaninda/duck-rage/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config directory and an age identity",
	Long: `Create <config-dir>/duck-rage and generate an age identity there, then
print the public key to encrypt secret stores against:

  duck-rage init
  echo '{"appuser": "s3cr3t"}' | age -r <public-key> -o ~/.config/duck-rage/secrets.age

An existing identity file is never overwritten; init prints its public
key instead.`,
	RunE: runInit,
}

func runInit(_ *cobra.Command, _ []string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	identityPath := filepath.Join(dir, config.IdentityFileName)
	if _, err := os.Stat(identityPath); err == nil {
		recipient, err := identityRecipient(identityPath)
		if err != nil {
			return fmt.Errorf("reading existing identity %s: %w", identityPath, err)
		}
		fmt.Printf("Identity already exists: %s\n", identityPath)
		fmt.Printf("Public key: %s\n", recipient)
		return nil
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().Format(time.RFC3339), id.Recipient(), id)
	if err := os.WriteFile(identityPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing identity %s: %w", identityPath, err)
	}

	fmt.Printf("Identity written to %s\n", identityPath)
	fmt.Printf("Public key: %s\n", id.Recipient())
	fmt.Printf("\nEncrypt a secret store with:\n  age -r %s -o %s secrets.json\n",
		id.Recipient(), filepath.Join(dir, config.SecretsFileName))
	return nil
}

// identityRecipient parses an identity file and returns the public key
// of the first X25519 identity in it.
func identityRecipient(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x.Recipient().String(), nil
		}
	}
	return "", fmt.Errorf("no X25519 identity found")
}
