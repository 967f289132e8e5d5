package registry

import (
	"context"
	"testing"
)

func TestRemoteClient_ResolveDigest_InvalidReference(t *testing.T) {
	c := &RemoteClient{}
	_, err := c.ResolveDigest(context.Background(), "", Auth{Variant: AuthDefault})
	if err == nil {
		t.Fatal("expected error for invalid image reference")
	}
}
