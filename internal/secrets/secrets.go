// Package secrets parses decrypted secret-store content and serves
// single-key lookups. The store format is deliberately narrow: a flat
// JSON object mapping credential names to string values, nothing else.
// Store contents MUST NOT be serialized, logged, or included in errors;
// parse and lookup failures name keys and JSON types only, never values.
package secrets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when decrypted content is not a flat
// string-to-string JSON object.
var ErrMalformed = fmt.Errorf("malformed secret store")

// ErrNotFound is returned when a requested key is absent from the store.
var ErrNotFound = fmt.Errorf("key not found in secret store")

// Store is the in-memory secret mapping for a single resolution. It is
// built fresh from decrypted cleartext, serves lookups, and is discarded
// as soon as the resolution that owns it finishes.
type Store struct {
	values map[string]string
}

// Parse builds a Store from decrypted cleartext. Surrounding whitespace
// is ignored. Anything other than a flat JSON object with only string
// values fails with ErrMalformed.
func Parse(cleartext []byte) (*Store, error) {
	data := bytes.TrimSpace(cleartext)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: decrypted content is empty", ErrMalformed)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, fmt.Errorf("%w: invalid JSON at offset %d", ErrMalformed, syntaxErr.Offset)
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: top-level JSON value is %s, want an object", ErrMalformed, typeErr.Value)
		}
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	values := make(map[string]string, len(raw))
	for key, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: value for key %q is %s, want a string", ErrMalformed, key, jsonTypeName(v))
		}
		values[key] = s
	}

	return &Store{values: values}, nil
}

// Lookup returns the value for key. Matching is exact and
// case-sensitive; an absent key fails with ErrNotFound and never falls
// back to any other entry.
func (s *Store) Lookup(key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return value, nil
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	return len(s.values)
}

// Discard drops the store's contents. Subsequent lookups fail with
// ErrNotFound.
func (s *Store) Discard() {
	clear(s.values)
	s.values = nil
}

// Wipe zeroes a secret buffer in place.
func Wipe(b []byte) {
	clear(b)
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case float64:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
