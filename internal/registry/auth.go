package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"

	"github.com/krar-project/krar/internal/config"
)

// AuthVariant tags which RegistryAuth case is active.
type AuthVariant int

const (
	AuthDefault AuthVariant = iota
	AuthAuthfile
	AuthCreds
	AuthConfigDir
)

// Auth is the resolved credential to use for a registry lookup. At most one
// variant is active; Variant identifies which fields are meaningful.
type Auth struct {
	Variant AuthVariant

	AuthfilePath  string
	Username      string
	Password      string
	ConfigDirPath string
}

// SelectAuth chooses a RegistryAuth variant from the credential fields of a
// RunConfig by documented precedence: authfile, then inline creds, then
// config directory, then Default. It does not validate files or
// credentials; that is delegated to the registry client.
func SelectAuth(spec config.CredentialSpec) Auth {
	if spec.AuthfilePath != "" {
		return Auth{Variant: AuthAuthfile, AuthfilePath: spec.AuthfilePath}
	}
	if spec.InlineCreds != "" {
		user, pass, _ := strings.Cut(spec.InlineCreds, ":")
		return Auth{Variant: AuthCreds, Username: user, Password: pass}
	}
	if spec.ConfigDirPath != "" {
		return Auth{Variant: AuthConfigDir, ConfigDirPath: spec.ConfigDirPath}
	}
	return Auth{Variant: AuthDefault}
}

// Authenticator builds a go-containerregistry authenticator for pulling the
// manifest digest of registryHost. Authfile/config-dir variants are read
// lazily here so that SelectAuth itself never touches the filesystem.
func (a Auth) Authenticator(registryHost string) (authn.Authenticator, error) {
	switch a.Variant {
	case AuthCreds:
		return &authn.Basic{Username: a.Username, Password: a.Password}, nil

	case AuthAuthfile:
		data, err := os.ReadFile(a.AuthfilePath)
		if err != nil {
			return nil, fmt.Errorf("reading authfile %s: %w", a.AuthfilePath, err)
		}
		user, pass, err := ExtractCredentials(data, registryHost)
		if err != nil {
			return nil, err
		}
		return &authn.Basic{Username: user, Password: pass}, nil

	case AuthConfigDir:
		path := filepath.Join(a.ConfigDirPath, "config.json")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading docker config %s: %w", path, err)
		}
		user, pass, err := ExtractCredentials(data, registryHost)
		if err != nil {
			return nil, err
		}
		return &authn.Basic{Username: user, Password: pass}, nil

	default:
		return authn.Anonymous, nil
	}
}
