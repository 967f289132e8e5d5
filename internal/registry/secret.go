package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// dockerAuths is the "auths" map of a .dockerconfigjson document — the
// format defined by Docker and reused verbatim by Kubernetes for
// imagePullSecrets of type kubernetes.io/dockerconfigjson. krar reads this
// same on-disk shape from three places: a standalone authfile, a docker
// config directory's config.json, and (via the caller) a mounted Secret's
// .dockerconfigjson key, so the format itself is not tied to any one of
// them.
type dockerAuths struct {
	Auths map[string]dockerEntry `json:"auths"`
}

type dockerEntry struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Auth     string `json:"auth"` // base64(username:password)
}

// hostVariants returns the keys a dockerconfigjson "auths" map might use for
// host, in the order they should be tried: registries are commonly keyed by
// bare host, but some tooling (including Docker Hub's own credential
// helpers) writes a scheme-qualified key instead.
func hostVariants(host string) []string {
	return []string{host, "https://" + host, "http://" + host}
}

// ExtractCredentials parses fileBytes as a dockerconfigjson document and
// returns the username and password registered for host, decoding the
// legacy base64 "auth" field when a plaintext username/password pair isn't
// present.
func ExtractCredentials(fileBytes []byte, host string) (string, string, error) {
	var doc dockerAuths
	if err := json.Unmarshal(fileBytes, &doc); err != nil {
		return "", "", fmt.Errorf("parsing dockerconfigjson: %w", err)
	}

	var entry dockerEntry
	var found bool
	for _, candidate := range hostVariants(host) {
		if entry, found = doc.Auths[candidate]; found {
			break
		}
	}
	if !found {
		return "", "", fmt.Errorf("no credentials found for registry %s", host)
	}
	return decodeEntry(entry, host)
}

func decodeEntry(entry dockerEntry, host string) (string, string, error) {
	if entry.Username != "" && entry.Password != "" {
		return entry.Username, entry.Password, nil
	}
	if entry.Auth == "" {
		return "", "", fmt.Errorf("no username/password or auth field for registry %s", host)
	}

	raw, err := base64.StdEncoding.DecodeString(entry.Auth)
	if err != nil {
		return "", "", fmt.Errorf("decoding auth field: %w", err)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", fmt.Errorf("invalid auth field format")
	}
	return user, pass, nil
}
