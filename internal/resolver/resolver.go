// Package resolver sequences one credential resolution: locate the
// encrypted container and identity, read the container, decrypt, parse
// the store, look up the requested key, and assemble the credential
// record. The pipeline is linear and short-circuiting; the first
// failure surfaces immediately and nothing is retried or cached.
//
// The package also defines the externally observable error taxonomy.
// Decrypted material is wiped and the store discarded on every exit
// path, and never appears in errors or logs.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jkaninda/duck-rage/internal/credential"
	"github.com/jkaninda/duck-rage/internal/decrypt"
	"github.com/jkaninda/duck-rage/internal/locate"
	"github.com/jkaninda/duck-rage/internal/secrets"
)

// The failure kinds a resolution can surface; callers discriminate with
// errors.Is. ErrMalformedStore and ErrSecretNotFound re-export the
// store package's sentinels as part of this taxonomy.
var (
	// ErrLocation: a resolved path is missing or unreadable, no source
	// yields a usable path, or the container bytes cannot be read.
	ErrLocation = errors.New("location error")
	// ErrDecryption: the decryption capability rejected the container or
	// identity, or is unavailable.
	ErrDecryption = errors.New("decryption failed")
	// ErrMalformedStore: decrypted content is not a flat string map.
	ErrMalformedStore = secrets.ErrMalformed
	// ErrSecretNotFound: the requested key is absent from the store.
	ErrSecretNotFound = secrets.ErrNotFound
	// ErrAssembly: invalid connection parameters.
	ErrAssembly = errors.New("invalid connection parameters")
)

// Sink registers a finished credential with the host's secret storage.
// Registration is keyed by the record's SecretName with create-or-replace
// semantics, so re-resolving a database overwrites rather than
// duplicates. Implementations return a short human-readable status line
// and must never persist or log the secret value.
type Sink interface {
	Register(ctx context.Context, rec credential.Record) (string, error)
}

// Resolver runs resolutions against an injectable environment. Nil
// Getenv and UserConfigDir fall back to the os package; a nil Logger
// discards. Resolutions are independent and the Resolver is safe for
// concurrent use once its fields are set.
type Resolver struct {
	Decryptor     decrypt.Decryptor
	Getenv        func(string) string
	UserConfigDir func() (string, error)
	Logger        *slog.Logger
}

// New returns a Resolver over the real process environment.
func New(dec decrypt.Decryptor, logger *slog.Logger) *Resolver {
	return &Resolver{Decryptor: dec, Logger: logger}
}

// Resolve runs the pipeline for one request and returns the assembled
// credential record. The record's secret value is the caller's to
// guard; everything intermediate is reclaimed before Resolve returns.
func (r *Resolver) Resolve(ctx context.Context, req credential.Request) (credential.Record, error) {
	logger := r.logger()

	loc := locate.Locator{Getenv: r.Getenv, UserConfigDir: r.UserConfigDir}
	locs, err := loc.Resolve(req.SecretsFile, req.IdentityFile)
	if err != nil {
		return credential.Record{}, fmt.Errorf("%w: %w", ErrLocation, err)
	}
	logger.DebugContext(ctx, "locations resolved",
		slog.String("secrets_file", locs.SecretsFile),
		slog.String("identity_file", locs.IdentityFile),
	)

	if r.Decryptor == nil {
		return credential.Record{}, fmt.Errorf("%w: no decryptor configured", ErrDecryption)
	}

	container, err := os.ReadFile(locs.SecretsFile)
	if err != nil {
		return credential.Record{}, fmt.Errorf("%w: reading secrets container: %w", ErrLocation, err)
	}

	cleartext, err := r.Decryptor.Decrypt(ctx, container, locs.IdentityFile)
	if err != nil {
		return credential.Record{}, fmt.Errorf("%w: %s: %w", ErrDecryption, locs.SecretsFile, err)
	}
	defer secrets.Wipe(cleartext)

	store, err := secrets.Parse(cleartext)
	if err != nil {
		return credential.Record{}, err
	}
	defer store.Discard()
	logger.DebugContext(ctx, "secret store parsed", slog.Int("entries", store.Len()))

	value, err := store.Lookup(req.SecretKey)
	if err != nil {
		return credential.Record{}, err
	}

	rec, err := credential.Assemble(req, value)
	if err != nil {
		return credential.Record{}, fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	logger.DebugContext(ctx, "credential resolved", slog.Any("record", rec))
	return rec, nil
}

// Register resolves a credential and hands it to the sink. Sink
// failures are the sink's own errors, outside the resolution taxonomy.
func (r *Resolver) Register(ctx context.Context, req credential.Request, sink Sink) (string, error) {
	rec, err := r.Resolve(ctx, req)
	if err != nil {
		return "", err
	}
	status, err := sink.Register(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("registering secret %s: %w", rec.SecretName, err)
	}
	return status, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
