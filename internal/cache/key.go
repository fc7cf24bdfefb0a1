package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultNamespace is used when no namespace is configured
const DefaultNamespace = "reflex"

// Key derives a deterministic, content-addressed cache key. The input is
// normalized (trimmed, case-folded) before hashing so trivially different
// renderings of the same text map to the same entry. The key format is
// namespace:cache:<first 32 hex chars of SHA-256>.
func Key(namespace, data string) (string, error) {
	normalized, err := normalize(namespace, data)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s:cache:%s", namespace, hex.EncodeToString(sum[:])[:32]), nil
}

// FastKey derives a key with xxHash instead of SHA-256. Suitable for
// high-throughput paths where cryptographic strength is not needed.
func FastKey(namespace, data string) (string, error) {
	normalized, err := normalize(namespace, data)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:cache:%x", namespace, xxhash.Sum64String(normalized)), nil
}

func normalize(namespace, data string) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("namespace cannot be empty")
	}
	if data == "" {
		return "", fmt.Errorf("data cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(data))
	if normalized == "" {
		return "", fmt.Errorf("data cannot be empty after normalization")
	}
	return normalized, nil
}
