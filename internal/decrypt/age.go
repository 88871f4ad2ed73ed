package decrypt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/jkaninda/duck-rage/internal/secrets"
)

// AgeDecryptor decrypts age containers in process with identities read
// from the identity file. Binary and ASCII-armored containers are both
// accepted. Identity file bytes are wiped once parsed.
type AgeDecryptor struct{}

func (AgeDecryptor) Decrypt(ctx context.Context, container []byte, identityFile string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identityData, err := os.ReadFile(identityFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity file: %w", err)
	}
	defer secrets.Wipe(identityData)

	identities, err := age.ParseIdentities(bytes.NewReader(identityData))
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", identityFile, err)
	}

	var src io.Reader = bytes.NewReader(container)
	if bytes.HasPrefix(bytes.TrimSpace(container), []byte(armor.Header)) {
		src = armor.NewReader(src)
	}

	r, err := age.Decrypt(src, identities...)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	cleartext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted content: %w", err)
	}
	return cleartext, nil
}
