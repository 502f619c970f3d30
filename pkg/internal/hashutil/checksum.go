package hashutil

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// CalculateFileChecksum calculates the SHA256 checksum of a file
func CalculateFileChecksum(fs afero.Fs, path string) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return format(hash.Sum(nil)), nil
}

// CalculateChecksum calculates the SHA256 checksum of data
func CalculateChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return format(sum[:])
}

// CalculatePartsChecksum hashes parts in order, each terminated by a NUL
// byte so that ("ab", "c") and ("a", "bc") differ.
func CalculatePartsChecksum(parts ...string) string {
	hash := sha256.New()
	for _, p := range parts {
		_, _ = io.WriteString(hash, p)
		_, _ = hash.Write([]byte{0})
	}
	return format(hash.Sum(nil))
}

// HexDigest strips the "sha256:" prefix, matching sha256sum output.
func HexDigest(checksum string) string {
	const prefix = "sha256:"
	if len(checksum) > len(prefix) && checksum[:len(prefix)] == prefix {
		return checksum[len(prefix):]
	}
	return checksum
}

func format(sum []byte) string {
	return fmt.Sprintf("sha256:%x", sum)
}
