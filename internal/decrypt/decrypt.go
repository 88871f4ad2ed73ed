// Package decrypt is the boundary to the external decryption
// capability. The pipeline treats decryption as atomic and opaque: a
// container plus an identity file path go in, cleartext bytes come out.
// Implementations report their own errors; the caller wraps them
// uniformly and never interprets the encryption format.
package decrypt

import "context"

// Decryptor opens an encrypted secrets container.
// Implementations must be safe for concurrent use.
type Decryptor interface {
	Decrypt(ctx context.Context, container []byte, identityFile string) ([]byte, error)
}
