package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SaveUpload streams r into dir under a collision-free name derived from the
// original filename, computing the content hash on the way through. Returns
// the stored path, byte count and hex sha256.
func SaveUpload(dir, filename string, r io.Reader) (string, int64, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+"_"+filepath.Base(filename))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, hasher))
	if err != nil {
		os.Remove(path)
		return "", 0, "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return path, size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// FileSHA256 returns the hex sha256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// BytesSHA256 returns the hex sha256 of data.
func BytesSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
