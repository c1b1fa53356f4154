// Package hashing derives storage keys and bearer secrets from external
// user identifiers.
//
// Two schemes coexist while old rows are migrated:
//
//   - Current: SHA-256 based. Storage keys embed the first 8 digest bytes,
//     secrets the first 16 bytes of a domain-separated digest.
//   - Legacy: CRC32 based. Deprecated because the 32-bit space has poor
//     collision resistance and the key leaks identifier entropy.
//
// Rows written under legacy keys are migrated to current keys transparently
// by the settings service; IsLegacyKey identifies them on the way.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
)

// keyPrefix is shared by both schemes so a key scan can find every
// settings row regardless of vintage.
const keyPrefix = "settings:"

// StorageKey returns the current storage key for an external user id:
// "settings:" followed by the hex of the first 8 bytes of SHA-256(uid).
func StorageKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return keyPrefix + hex.EncodeToString(sum[:8])
}

// UserSecret returns the current bearer secret for an external user id:
// the hex of the first 16 bytes of SHA-256("secret:" + uid).
func UserSecret(userID string) string {
	h := sha256.New()
	h.Write([]byte("secret:"))
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// LegacyStorageKey returns the deprecated CRC32 storage key:
// "settings:" followed by the decimal CRC32 of the user id.
func LegacyStorageKey(userID string) string {
	return fmt.Sprintf("%s%d", keyPrefix, crc32.ChecksumIEEE([]byte(userID)))
}

// LegacyUserSecret returns the deprecated CRC32 bearer secret:
// the zero-padded 8-character hex CRC32 of the user id.
func LegacyUserSecret(userID string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(userID)))
}

// IsLegacyKey reports whether a storage key was produced by the legacy
// scheme. Legacy keys carry a decimal CRC32 after the prefix, so the
// remainder is 1 to 10 ASCII digits. Anything else is treated as current.
func IsLegacyKey(key string) bool {
	if len(key) <= len(keyPrefix) || key[:len(keyPrefix)] != keyPrefix {
		return false
	}
	rest := key[len(keyPrefix):]
	if len(rest) > 10 {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}

// LegacyKeyIfDifferent returns the legacy storage key for a user when it
// differs from the current one, or "" when the two schemes collide on the
// same key (in which case there is nothing to migrate or clean up).
func LegacyKeyIfDifferent(userID, currentKey string) string {
	legacy := LegacyStorageKey(userID)
	if legacy == currentKey {
		return ""
	}
	return legacy
}
