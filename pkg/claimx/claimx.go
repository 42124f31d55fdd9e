// Package claimx serializes the structured claim and metadata maps that
// ride along with stored authorizations. The maps are JSON documents in
// the persisted form; round-tripping is lossless for one encode/decode
// cycle over JSON-compatible values.
//
// Decoding comes in two flavours with different failure policy. Store
// reads use DecodeLenient so a corrupt blob never prevents the rest of a
// record from loading. Paths that parse client-supplied input use the
// strict Decode and get a SerializationError naming the offending field.
package claimx

import (
	"encoding/json"
	"fmt"
)

// Reserved metadata keys. Claims holds the full claim set of an ID token;
// Invalidated marks a token as logically dead without deleting it.
const (
	MetadataClaims      = "claims"
	MetadataInvalidated = "invalidated"
)

// SerializationError reports a metadata or attributes value that could
// not be parsed when strict parsing was required.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("claimx: cannot parse %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Encode renders a claim map as JSON. A nil map encodes as an empty
// object so the persisted column is never the literal "null".
func Encode(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses a claim map strictly. Empty input yields an empty map;
// anything else that fails to parse is a *SerializationError carrying
// the field name.
func Decode(field, raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, &SerializationError{Field: field, Err: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// DecodeLenient parses a claim map and degrades to an empty map on any
// malformed or null input. Store loads always use this path so one
// corrupt blob cannot take the whole record down with it.
func DecodeLenient(raw string) map[string]any {
	m, err := Decode("", raw)
	if err != nil {
		return map[string]any{}
	}
	return m
}
