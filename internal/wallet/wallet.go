// Package wallet loads the operator key used to authenticate requests to the
// market and the ledger service.
package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvKey names the environment variable holding the hex-encoded key.
const EnvKey = "SIGNER_PRIVATE_KEY_HEX"

// Key is 32 bytes of signing material. Its printed form is redacted so the
// material cannot leak through logs.
type Key struct {
	raw []byte
}

// Load resolves the key from the environment, falling back to the configured
// hex string. A .env file is honored when present.
func Load(configHex string) (Key, error) {
	_ = godotenv.Load() // best-effort
	material := os.Getenv(EnvKey)
	if material == "" {
		material = configHex
	}
	if material == "" {
		return Key{}, errors.New(EnvKey + " not set")
	}
	return Parse(material)
}

// Parse decodes a 32-byte hex key, with or without the 0x prefix.
func Parse(material string) (Key, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(material, "0x"))
	if err != nil {
		return Key{}, fmt.Errorf("decode key: %w", err)
	}
	if len(raw) != 32 {
		return Key{}, fmt.Errorf("key must be 32 bytes, got %d", len(raw))
	}
	return Key{raw: raw}, nil
}

// Sign authenticates a request payload with HMAC-SHA256 under the key.
func (k Key) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, k.raw)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Fingerprint identifies the key in logs without exposing material.
func (k Key) Fingerprint() string {
	sum := sha256.Sum256(k.raw)
	return hex.EncodeToString(sum[:4])
}

// Zero reports whether no key material is loaded.
func (k Key) Zero() bool { return len(k.raw) == 0 }

// String implements fmt.Stringer with a redacted form.
func (k Key) String() string {
	if k.Zero() {
		return "(unset)"
	}
	return "key:" + k.Fingerprint()
}
