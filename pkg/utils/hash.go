package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const (
	// Files at or below this size are hashed with a single read; larger files
	// stream through the hash in chunks.
	smallFileThreshold = 24 * 1024 * 1024 // 24 MiB
	hashChunkSize      = 1024 * 1024      // 1 MiB
)

// StringSHA256 computes the SHA-256 hash of a string and returns it as hex.
func StringSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// BytesSHA256 computes the SHA-256 hash of a byte slice and returns it as hex.
func BytesSHA256(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FileSHA256 computes the SHA-256 hash of a file's content. Small files are
// read whole; large files are hashed incrementally chunk by chunk.
func FileSHA256(filePath string) (string, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrFilesystem, filePath, err)
	}

	if info.Size() <= smallFileThreshold {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %w", ErrFilesystem, filePath, err)
		}
		return BytesSHA256(data), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrFilesystem, filePath, err)
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(hash, file, buf); err != nil {
		return "", fmt.Errorf("%w: hashing %s: %w", ErrFilesystem, filePath, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
