package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"aipixels/internal/domain"
)

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("storage: key is required: %w", domain.ErrInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("storage: traversal in %q: %w", key, domain.ErrInvalidKey)
		}
	}
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("storage: invalid key %q: %w", key, domain.ErrInvalidKey)
	}
	return cleaned, nil
}

// ownedKey sanitizes key and checks that its first segment is ownerID.
func ownedKey(ownerID, key string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || strings.ContainsAny(ownerID, "/\\") || ownerID == "." || ownerID == ".." {
		return "", fmt.Errorf("storage: invalid owner %q: %w", ownerID, domain.ErrTenancyViolation)
	}
	cleaned, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	first, rest, found := strings.Cut(cleaned, "/")
	if !found || first != ownerID || rest == "" {
		return "", fmt.Errorf("storage: %q not under %q: %w", cleaned, ownerID, domain.ErrTenancyViolation)
	}
	return cleaned, nil
}

// escapeKey percent-encodes each path segment for use in a URL.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
