package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// SourceFingerprint returns the hex SHA-256 of a source file's contents. The
// fingerprint keys the processing ledger and the vector store, so the same
// document is recognized regardless of its path.
func SourceFingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source for fingerprint: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash source: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
