package stager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// openSource opens a matched source for reading.
var openSource = os.Open

// copyFile copies the full contents of src into a new file at dst and returns
// the byte count and SHA-256 of what was written.
func copyFile(src, dst string) (int64, string, error) {
	in, err := openSource(src)
	if err != nil {
		return 0, "", fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, "", fmt.Errorf("create target: %w", err)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, hash), in)
	if err != nil {
		out.Close()
		return n, "", fmt.Errorf("copy bytes: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, "", fmt.Errorf("close target: %w", err)
	}

	return n, hex.EncodeToString(hash.Sum(nil)), nil
}

// hashFile returns the size and SHA-256 of the file at path.
func hashFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	hash := sha256.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return n, "", err
	}
	return n, hex.EncodeToString(hash.Sum(nil)), nil
}
