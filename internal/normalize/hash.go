package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	sum, _, err := FileHashSize(path)
	return sum, err
}

// FileHashSize computes the hex-encoded SHA-256 of the file at path together
// with the number of bytes hashed.
func FileHashSize(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.Wrap(err, "open file for hash")
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, errors.Wrap(err, "hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
