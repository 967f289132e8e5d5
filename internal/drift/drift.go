// Package drift implements the Drift Checker: comparing locally-resolved
// image digests against registry-side digests for the same tag.
package drift

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/krar-project/krar/internal/cluster"
	"github.com/krar-project/krar/internal/digest"
	"github.com/krar-project/krar/internal/metrics"
	"github.com/krar-project/krar/internal/projection"
	"github.com/krar-project/krar/internal/registry"
)

// Pair is the comparison result for one (image, imageID) occurrence.
type Pair struct {
	Image        string
	LocalDigest  string
	RemoteDigest string
	Drifted      bool
}

// key identifies a (image, imageID) occurrence. The same image reference
// can carry different local digests across pods of the same controller
// (spec.md §9 Open Question 3), so results must be keyed on the pair, not
// on the image alone, or one occurrence's comparison silently clobbers
// another's.
func key(image, imageID string) string {
	return image + "|" + imageID
}

// Checker performs per-image registry digest lookups with a bounded
// worker pool and a retrying registry client, matching the teacher's
// semaphore-gated orchestration shape.
type Checker struct {
	Registry      registry.Client
	Auth          registry.Auth
	MaxConcurrent int
	Retries       int
	Metrics       *metrics.Counters
}

func (c *Checker) maxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 1
	}
	return c.MaxConcurrent
}

func (c *Checker) retries() int {
	if c.Retries <= 0 {
		return 1
	}
	return c.Retries
}

// Check deduplicates (image, imageID) pairs across samples, normalizes the
// local digest for each, and resolves the registry-side digest for images
// with a usable local digest. Images with an empty local digest, a failed
// lookup, or an empty remote digest are warned and excluded from the
// result — they are neither confirmed drifted nor confirmed fresh.
func (c *Checker) Check(ctx context.Context, samples []projection.PodSample, logger logr.Logger) map[string]Pair {
	type job struct {
		image   string
		imageID string
	}

	seen := make(map[string]bool)
	var jobs []job
	for _, s := range samples {
		combo := key(s.Image, s.ImageID)
		if seen[combo] {
			continue
		}
		seen[combo] = true
		jobs = append(jobs, job{image: s.Image, imageID: s.ImageID})
	}

	results := make(map[string]Pair)
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, c.maxConcurrent())

	for _, j := range jobs {
		local := digest.Normalize(j.imageID)
		if local == "" {
			logger.Info("skipping image with no usable local digest", "image", j.image)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(image, imageID, local string) {
			defer wg.Done()
			defer func() { <-sem }()

			remote, err := c.resolveWithRetry(ctx, image)
			if err != nil {
				logger.Info("registry lookup failed after retries; skipping", "image", image, "error", err.Error())
				if c.Metrics != nil {
					c.Metrics.RecordRegistryLookupError()
				}
				return
			}
			if remote == "" {
				logger.Info("registry returned empty digest; skipping", "image", image)
				if c.Metrics != nil {
					c.Metrics.RecordRegistryLookupError()
				}
				return
			}

			pair := Pair{
				Image:        image,
				LocalDigest:  local,
				RemoteDigest: remote,
				Drifted:      remote != local,
			}

			mu.Lock()
			results[key(image, imageID)] = pair
			mu.Unlock()
		}(j.image, j.imageID, local)
	}

	wg.Wait()
	return results
}

func (c *Checker) resolveWithRetry(ctx context.Context, image string) (string, error) {
	backoff := wait.Backoff{
		Steps:    c.retries(),
		Duration: 200 * time.Millisecond,
		Factor:   2.0,
		Jitter:   0.1,
	}

	var resolved string
	err := retry.OnError(backoff, func(error) bool { return true }, func() error {
		d, err := c.Registry.ResolveDigest(ctx, image, c.Auth)
		if err != nil {
			return err
		}
		resolved = d
		return nil
	})
	return resolved, err
}

// CandidateControllers returns the subset of targets whose any eligible
// container uses a drifted image (spec.md §9 Open Question 3: any drifted
// occurrence marks the owning controller as drifted).
func CandidateControllers(samples []projection.PodSample, results map[string]Pair) map[string]cluster.ControllerRef {
	candidates := make(map[string]cluster.ControllerRef)
	for _, s := range samples {
		pair, ok := results[key(s.Image, s.ImageID)]
		if !ok || !pair.Drifted {
			continue
		}
		candidates[s.Owner.Key()] = s.Owner
	}
	return candidates
}
