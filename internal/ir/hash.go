package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFact    = "agrisense/fact/v1"
	DomainBinding = "agrisense/binding/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FactHash computes the content-addressed identity of a (kind, attrs) pair.
// Two facts with the same hash carry identical knowledge; the fact store
// uses this for idempotent assertion.
func FactHash(kind string, attrs Attrs) (string, error) {
	kindJSON, err := MarshalCanonical(kind)
	if err != nil {
		return "", fmt.Errorf("FactHash: marshal kind: %w", err)
	}
	attrsJSON, err := MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("FactHash: marshal attrs: %w", err)
	}

	payload := make([]byte, 0, len(kindJSON)+1+len(attrsJSON))
	payload = append(payload, kindJSON...)
	payload = append(payload, 0x00)
	payload = append(payload, attrsJSON...)

	return hashWithDomain(DomainFact, payload), nil
}

// BindingHash computes the identity of a variable binding.
// Used in refraction keys and the trace store's uniqueness backstop:
// a (rule, binding, support) triple fires at most once per session.
func BindingHash(b Binding) (string, error) {
	canonical, err := MarshalCanonical(b)
	if err != nil {
		return "", fmt.Errorf("BindingHash: marshal: %w", err)
	}
	return hashWithDomain(DomainBinding, canonical), nil
}

// MustFactHash is like FactHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactHash(kind string, attrs Attrs) string {
	h, err := FactHash(kind, attrs)
	if err != nil {
		panic(err)
	}
	return h
}

// MustBindingHash is like BindingHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustBindingHash(b Binding) string {
	h, err := BindingHash(b)
	if err != nil {
		panic(err)
	}
	return h
}
