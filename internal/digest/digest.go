// Package digest normalizes the locally-observed image digest out of a
// pod's imageID field.
package digest

import "strings"

const (
	sha256Prefix = "sha256:"
	// len("sha256:") + 64 hex chars.
	sha256Len = len(sha256Prefix) + 64
)

// Normalize extracts the digest portion of an imageID and canonicalizes it
// to exactly "sha256:<hex>".
//
// Supported inputs:
//   - "registry/repo@sha256:abc123..." -> "sha256:abc123..."
//   - "sha256:abc123..."               -> "sha256:abc123..."
//   - "registry/repo:tag"              -> "" (no digest present)
//   - ""                               -> ""
func Normalize(imageID string) string {
	d := imageID
	if idx := strings.LastIndex(imageID, "@"); idx != -1 {
		d = imageID[idx+1:]
	}

	if !strings.HasPrefix(d, sha256Prefix) || len(d) != sha256Len {
		return ""
	}
	return d
}
