package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-containerregistry/pkg/authn"

	"github.com/krar-project/krar/internal/config"
)

func TestSelectAuth_Precedence(t *testing.T) {
	tests := []struct {
		name string
		spec config.CredentialSpec
		want AuthVariant
	}{
		{"authfile wins over everything", config.CredentialSpec{AuthfilePath: "/a", InlineCreds: "u:p", ConfigDirPath: "/d"}, AuthAuthfile},
		{"creds win over config dir", config.CredentialSpec{InlineCreds: "u:p", ConfigDirPath: "/d"}, AuthCreds},
		{"config dir is the last resort before default", config.CredentialSpec{ConfigDirPath: "/d"}, AuthConfigDir},
		{"default when nothing is set", config.CredentialSpec{}, AuthDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectAuth(tt.spec)
			if got.Variant != tt.want {
				t.Errorf("got variant %v, want %v", got.Variant, tt.want)
			}
		})
	}
}

func TestSelectAuth_SplitsInlineCreds(t *testing.T) {
	got := SelectAuth(config.CredentialSpec{InlineCreds: "admin:s3cret"})
	if got.Username != "admin" || got.Password != "s3cret" {
		t.Errorf("got %s:%s, want admin:s3cret", got.Username, got.Password)
	}
}

func TestAuth_Authenticator_Default(t *testing.T) {
	a := Auth{Variant: AuthDefault}
	got, err := a.Authenticator("registry.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != authn.Anonymous {
		t.Errorf("expected anonymous authenticator, got %v", got)
	}
}

func TestAuth_Authenticator_Creds(t *testing.T) {
	a := Auth{Variant: AuthCreds, Username: "admin", Password: "s3cret"}
	got, err := a.Authenticator("registry.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := got.Authorization()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Username != "admin" || cfg.Password != "s3cret" {
		t.Errorf("got %s:%s, want admin:s3cret", cfg.Username, cfg.Password)
	}
}

func TestAuth_Authenticator_Authfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.json")
	if err := os.WriteFile(path, []byte(`{"auths":{"registry.example.com":{"username":"admin","password":"s3cret"}}}`), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	a := Auth{Variant: AuthAuthfile, AuthfilePath: path}
	got, err := a.Authenticator("registry.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := got.Authorization()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Username != "admin" || cfg.Password != "s3cret" {
		t.Errorf("got %s:%s, want admin:s3cret", cfg.Username, cfg.Password)
	}
}

func TestAuth_Authenticator_ConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"auths":{"registry.example.com":{"username":"admin","password":"s3cret"}}}`), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	a := Auth{Variant: AuthConfigDir, ConfigDirPath: dir}
	got, err := a.Authenticator("registry.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := got.Authorization()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Username != "admin" || cfg.Password != "s3cret" {
		t.Errorf("got %s:%s, want admin:s3cret", cfg.Username, cfg.Password)
	}
}

func TestAuth_Authenticator_AuthfileMissing(t *testing.T) {
	a := Auth{Variant: AuthAuthfile, AuthfilePath: "/nonexistent/auth.json"}
	if _, err := a.Authenticator("registry.example.com"); err == nil {
		t.Error("expected error for missing authfile")
	}
}
