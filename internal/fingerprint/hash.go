package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DomainContent prefixes every content hash. The version suffix allows a
// future algorithm migration without colliding with stored hashes.
const DomainContent = "tommy/content/v1"

// ContentHash returns the hex SHA-256 of the file at path.
// Format: SHA256(domain + 0x00 + bytes)
//
// Returns an error if the file cannot be read; callers must not cache it.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("content hash: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// bytesHash hashes in-memory content with the same domain as ContentHash.
func bytesHash(data []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainContent))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
