package registry

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
)

// ParsedRef is a registry/repo:tag reference broken into its parts.
type ParsedRef struct {
	Tag      name.Tag
	Registry string
	Repo     string
	TagName  string
}

// ParseTagRef parses a "registry/repo:tag" image reference. A bare
// "registry/repo" (no tag) defaults to ":latest", matching registry
// semantics for an unqualified reference.
func ParseTagRef(image string) (ParsedRef, error) {
	tag, err := name.NewTag(image, name.WeakValidation)
	if err != nil {
		return ParsedRef{}, fmt.Errorf("parsing image reference %q: %w", image, err)
	}
	return ParsedRef{
		Tag:      tag,
		Registry: tag.RegistryStr(),
		Repo:     tag.RepositoryStr(),
		TagName:  tag.TagStr(),
	}, nil
}
