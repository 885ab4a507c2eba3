package blobstore

import (
	"crypto/rand"
	"fmt"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Largest multiple of len(alphanumeric) that fits in a byte; bytes at or
	// above it are redrawn so every character is equally likely.
	alphanumericCutoff = 256 - 256%len(alphanumeric)

	// NameLength is the length of generated storage file names.
	NameLength = 32
)

// RandomName returns a random alphanumeric string of the given length.
func RandomName(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("name length must be positive")
	}
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= alphanumericCutoff {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// IsName reports whether s looks like a generated storage file name.
func IsName(s string) bool {
	if len(s) != NameLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
