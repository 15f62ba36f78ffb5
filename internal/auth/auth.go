// Package auth implements the shared-secret key bootstrap and constant-time
// comparison used to authenticate both transports.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	keyPrefix = "voice-code-"
	hexLen    = 32
)

var keyPattern = regexp.MustCompile(`^voice-code-[0-9a-f]{32}$`)

// GenerateKey creates a fresh 128-bit key encoded as voice-code-<32 hex>.
func GenerateKey() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(raw), nil
}

// IsValidKeyFormat reports whether s matches ^voice-code-[0-9a-f]{32}$
// exactly. Uppercase or any other character makes the key invalid.
func IsValidKeyFormat(s string) bool {
	return keyPattern.MatchString(s)
}

// LoadOrGenerateKey bootstraps the key file at path. If the file is
// absent, malformed, or empty, a new key is generated and written with
// mode 0600. The bootstrap is idempotent: an existing valid key is
// preserved verbatim across repeated calls.
func LoadOrGenerateKey(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		candidate := strings.TrimSpace(string(data))
		if IsValidKeyFormat(candidate) {
			return candidate, nil
		}
	}

	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(key), 0600); err != nil {
		return "", fmt.Errorf("writing key to %s: %w", path, err)
	}
	return key, nil
}

// Equal performs a constant-time comparison of candidate against the
// stored key. It does not short-circuit on length mismatch in a way that
// is timing-observable relative to equal-length comparisons: a mismatched
// length is padded to the stored key's length before comparing, so the
// comparison always walks the same number of bytes regardless of which
// branch is taken.
func Equal(stored, candidate string) bool {
	storedBytes := []byte(stored)
	candidateBytes := []byte(candidate)

	if len(candidateBytes) != len(storedBytes) {
		padded := make([]byte, len(storedBytes))
		copy(padded, candidateBytes)
		return subtle.ConstantTimeCompare(storedBytes, padded) == 1 && len(candidateBytes) == len(storedBytes)
	}
	return subtle.ConstantTimeCompare(storedBytes, candidateBytes) == 1
}
