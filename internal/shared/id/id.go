// Package id generates short, URL-safe identifiers.
package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the default length for generated short IDs
	DefaultLength = 12
)

// Prefixes for different entity types (Stripe-style)
const (
	PrefixSession = "ses"
	PrefixSecret  = "sec"
	PrefixLease   = "lease"
)

// Generate creates a random short ID with the specified length using Base62
// encoding. The generated ID is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// MustGenerate creates a random short ID and panics on error.
func MustGenerate(length int) string {
	id, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateWithPrefix creates a prefixed ID in the format "prefix_randomstring".
func GenerateWithPrefix(prefix string, length int) (string, error) {
	id, err := Generate(length)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}

// NewSessionID derives a session identifier from the owning sensor and the
// session start time, plus a random suffix for uniqueness under races:
// "ses_<sensorId>_<startUnix>_<rand>". The deterministic part makes sessions
// greppable in logs and storage.
func NewSessionID(sensorID string, startAt time.Time) (string, error) {
	suffix, err := Generate(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s_%d_%s", PrefixSession, sensorID, startAt.Unix(), suffix), nil
}

// NewSecretRef generates an opaque pointer into the secret store.
func NewSecretRef() (string, error) {
	return GenerateWithPrefix(PrefixSecret, 16)
}

// ParseSessionID extracts the sensor ID and start time from a session ID.
func ParseSessionID(sessionID string) (sensorID string, startAt time.Time, err error) {
	parts := strings.Split(sessionID, "_")
	if len(parts) < 4 || parts[0] != PrefixSession {
		return "", time.Time{}, fmt.Errorf("invalid session ID format: %s", sessionID)
	}
	// The sensor ID may itself contain underscores; the last two segments are
	// always startUnix and the random suffix.
	unix, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid session ID timestamp: %s", sessionID)
	}
	sensorID = strings.Join(parts[1:len(parts)-2], "_")
	return sensorID, time.Unix(unix, 0).UTC(), nil
}
