package download

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// verifyBlockSize is the streaming digest block; model files are multiple
// GB and must never be read wholesale into memory.
const verifyBlockSize = 64 * 1024

// VerifyIntegrity streams the file at path through SHA-256 and compares the
// digest against expectedHex, case-insensitively. On mismatch the corrupt
// file is deleted before the error returns, so a retry can never mistake it
// for a valid cached copy.
func VerifyIntegrity(path, expectedHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return ErrDownloadFailed(err.Error())
	}
	h := sha256.New()
	_, err = io.CopyBuffer(h, f, make([]byte, verifyBlockSize))
	f.Close()
	if err != nil {
		return ErrDownloadFailed(err.Error())
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expectedHex) {
		_ = os.Remove(path)
		return ErrIntegrityCheckFailed(strings.ToLower(expectedHex), actual)
	}
	return nil
}
