package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Client resolves the manifest digest a registry currently serves for a
// given tag. Implementations must be safe for concurrent use, since the
// Drift Checker fans lookups out across a bounded worker pool.
type Client interface {
	ResolveDigest(ctx context.Context, image string, auth Auth) (string, error)
}

// RemoteClient resolves digests against real registries using
// go-containerregistry. The zero value is ready to use.
type RemoteClient struct {
	// Transport overrides the HTTP transport used for registry calls, e.g.
	// to present client TLS material. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// ResolveDigest fetches the current manifest digest for image's tag.
func (c *RemoteClient) ResolveDigest(ctx context.Context, image string, auth Auth) (string, error) {
	ref, err := ParseTagRef(image)
	if err != nil {
		return "", err
	}

	authenticator, err := auth.Authenticator(ref.Registry)
	if err != nil {
		return "", err
	}

	opts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithAuth(authenticator),
	}
	if c.Transport != nil {
		opts = append(opts, remote.WithTransport(c.Transport))
	}

	desc, err := remote.Get(ref.Tag, opts...)
	if err != nil {
		return "", fmt.Errorf("resolving digest for %s: %w", image, err)
	}

	return desc.Digest.String(), nil
}
