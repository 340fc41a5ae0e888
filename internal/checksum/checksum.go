// Package checksum computes and compares content digests of binary images.
//
// The hub tooling identifies binary versions by their 128-bit MD5 digest.
// MD5 is kept for bit-for-bit compatibility with the digests already
// published for deployed firmware; it gates which patch payload may be
// applied and is not used as a defence against an adversary.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// DigestLength is the length of a hex-encoded digest string.
const DigestLength = 2 * md5.Size

// Sum returns the lowercase hex MD5 digest of data.
func Sum(data []byte) string {
	digest := md5.Sum(data)
	return hex.EncodeToString(digest[:])
}

// Verify reports whether the digest of data equals expected.
// The comparison is case-insensitive. A mismatch is not an error;
// the caller decides whether it is fatal.
func Verify(data []byte, expected string) bool {
	return strings.EqualFold(Sum(data), expected)
}

// IsDigest reports whether s looks like a hex MD5 digest.
// Used to validate catalog entries at load time.
func IsDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
