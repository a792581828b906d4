// Package keygen generates license keys and API keys. License key format
// and generation follow the generateLicenseKey/isValidLicenseKey pair in
// Mike-Gemutly-ArmorClaw/license-server/main.go; API key generation (random
// bytes, SHA-256 hash storage, short display prefix) follows the link-rift
// api_key_service.go pattern.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LicenseKey generates a license key of the form
// "<PREFIX>-XXXX-XXXX-XXXX-XXXX" for the given brand prefix, matching
// domain.ValidLicenseKeyFormat.
func LicenseKey(prefix string) (string, error) {
	groups := make([]string, 4)
	for i := range groups {
		g, err := randomGroup(4)
		if err != nil {
			return "", fmt.Errorf("generate license key group: %w", err)
		}
		groups[i] = g
	}
	return prefix + "-" + strings.Join(groups, "-"), nil
}

func randomGroup(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = keyAlphabet[int(b)%len(keyAlphabet)]
	}
	return string(out), nil
}

// HashKey returns the hex-encoded SHA-256 digest stored alongside (never
// instead of giving back) a generated key, used for O(1) lookup without
// persisting the plaintext credential a second way.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// apiKeyRandomBytes is the amount of entropy behind a generated API key,
// matching the link-rift reference service's key_service.go.
const apiKeyRandomBytes = 32

// APIKeyDisplayPrefixLen is how many characters of the raw key are kept in
// plaintext (APIKey.KeyPrefix) for display in brand dashboards.
const APIKeyDisplayPrefixLen = 8

// APIKey generates a new brand API key: the raw secret to return to the
// caller exactly once, plus its display prefix and SHA-256 hash for
// storage.
func APIKey(brandPrefix string) (raw, displayPrefix, hash string, err error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate api key entropy: %w", err)
	}
	raw = strings.ToLower(brandPrefix) + "_" + hex.EncodeToString(buf)
	if len(raw) < APIKeyDisplayPrefixLen {
		displayPrefix = raw
	} else {
		displayPrefix = raw[:APIKeyDisplayPrefixLen]
	}
	hash = HashKey(raw)
	return raw, displayPrefix, hash, nil
}
