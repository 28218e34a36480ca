package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
)

// ErrInvalidFileName is returned for names that are empty or try to climb
// out of their directory.
var ErrInvalidFileName = errors.New("invalid file name")

const maxNameRunes = 64

// ShortHash returns the first n hex digits of the SHA-256 of s, or all 64
// when n is out of range. Stores use it to keep session ids out of paths.
func ShortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	h := hex.EncodeToString(sum[:])
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[:n]
}

// SanitizeFileName maps name onto [A-Za-z0-9._-], replacing anything else
// with '_', and caps the stem so the extension survives.
func SanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}

	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)

	ext := path.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)
	if len(ext) > 10 {
		stem, ext = clean, ""
	}
	if limit := maxNameRunes - len(ext); len(stem) > limit {
		stem = stem[:limit]
	}
	if strings.Trim(stem, "_.") == "" && ext == "" {
		return "", ErrInvalidFileName
	}
	return stem + ext, nil
}
