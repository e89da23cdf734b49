package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	"voting-gateway/models"
)

// Derive turns a voter's shared secret into the correlation key used as the
// join key between the store and the ledger: the hex SHA-256 digest of the
// canonicalized email concatenated with the one-time code.
//
// The email is lower-cased and trimmed before hashing so that two sessions
// typing the same address with different capitalization still correlate. The
// one-time code is hashed as issued; codes are case-sensitive.
//
// Derive is pure and deterministic. The key cannot be reversed to recover
// either input.
func Derive(email, code string) models.CorrelationKey {
	canon := strings.ToLower(strings.TrimSpace(email))
	sum := sha256.Sum256([]byte(canon + code))
	return models.CorrelationKey(hex.EncodeToString(sum[:]))
}

// Fingerprint returns the hex Keccak-256 digest of a ballot payload. It is
// used as a display receipt only; payload comparison during reconciliation is
// always done on the full bytes.
func Fingerprint(payload []byte) string {
	d := sha3.NewLegacyKeccak256()
	d.Write(payload)
	return hex.EncodeToString(d.Sum(nil))
}
