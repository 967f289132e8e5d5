// Package config resolves CLI flags and environment variables into an
// immutable RunConfig and validates it before any cluster or registry call
// is made.
package config

import (
	"fmt"
	"strings"
)

// Mode selects the top-level behavior of a run.
type Mode string

const (
	ModeRollout Mode = "rollout"
	ModeSmart   Mode = "smart"
)

const (
	// DefaultMaxConcurrentLookups bounds the Drift Checker's worker pool.
	DefaultMaxConcurrentLookups = 4

	// RegistryLookupRetries is the number of attempts made per image before
	// a registry lookup is downgraded to a warning.
	RegistryLookupRetries = 3
)

// CredentialSpec carries the raw credential fields from CLI/env, in
// precedence order (authfile > creds > configDir > default).
type CredentialSpec struct {
	AuthfilePath  string
	InlineCreds   string // "user:pass"
	ConfigDirPath string
}

// TLSSpec carries optional mTLS material for registry/webhook access.
type TLSSpec struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// RunConfig is the immutable, validated configuration for one run.
type RunConfig struct {
	Mode Mode

	ResourceKinds []string

	LabelDomain string
	LabelName   string
	LabelValue  string

	ExplicitTargets []string

	NamespacesAll bool
	Namespaces    []string

	DryRun       bool
	SmartRestart bool

	JobName string

	Credentials CredentialSpec
	TLS         TLSSpec

	NotifyWebhook        string
	MaxConcurrentLookups int
	MetricsAddr          string
}

// InvalidConfig is returned when RunConfig fails validation. It identifies
// the first violated rule.
type InvalidConfig struct {
	Reason string
}

func (e *InvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// SplitTrim splits s on comma, trims surrounding whitespace from each
// entry, and drops empty entries.
func SplitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LabelComplete reports whether the label triple is fully specified.
func (c RunConfig) LabelComplete() bool {
	return c.LabelDomain != "" && c.LabelName != "" && c.LabelValue != ""
}

// LabelSelector returns the "{domain}/{name}={value}" selector string, or
// empty if the triple is incomplete.
func (c RunConfig) LabelSelector() string {
	if !c.LabelComplete() {
		return ""
	}
	return fmt.Sprintf("%s/%s=%s", c.LabelDomain, c.LabelName, c.LabelValue)
}

// LabelDiscoveryEnabled reports whether the label triple and resource kinds
// are both set, which is the precondition for label-based discovery to run
// at all (as opposed to explicit-targets-only runs).
func (c RunConfig) LabelDiscoveryEnabled() bool {
	return c.LabelComplete() && len(c.ResourceKinds) > 0
}

// Validate applies the required checks from the Config Resolver contract.
// It returns the first violated rule as an *InvalidConfig.
func (c RunConfig) Validate() error {
	if c.Mode != ModeRollout && c.Mode != ModeSmart {
		return &InvalidConfig{Reason: fmt.Sprintf("mode must be %q or %q, got %q", ModeRollout, ModeSmart, c.Mode)}
	}

	if !c.LabelDiscoveryEnabled() && len(c.ExplicitTargets) == 0 {
		return &InvalidConfig{Reason: "at least one of (resource-kinds and complete label triple) or explicit-targets must be set"}
	}

	if !c.NamespacesAll && len(c.Namespaces) == 0 {
		return &InvalidConfig{Reason: "namespaces-all is false but namespaces list is empty"}
	}

	return nil
}

// Resolve normalizes comma-separated list fields, applies defaults, and
// validates the result. It performs no environment or flag access itself,
// which keeps it trivially unit-testable.
func Resolve(c RunConfig) (RunConfig, error) {
	c.ResourceKinds = SplitTrim(strings.Join(c.ResourceKinds, ","))
	c.ExplicitTargets = SplitTrim(strings.Join(c.ExplicitTargets, ","))
	c.Namespaces = SplitTrim(strings.Join(c.Namespaces, ","))

	if c.MaxConcurrentLookups <= 0 {
		c.MaxConcurrentLookups = DefaultMaxConcurrentLookups
	}

	if err := c.Validate(); err != nil {
		return RunConfig{}, err
	}
	return c, nil
}

// ResolveLabelValue applies the documented fallback chain: explicit config
// value, then logical job name, then ambient job name. Implementers must
// preserve this order.
func ResolveLabelValue(explicit, jobName, ambientJobName string) string {
	if explicit != "" {
		return explicit
	}
	if jobName != "" {
		return jobName
	}
	return ambientJobName
}

// TLSEnabled reports whether all three TLS fields are set.
func TLSEnabled(cert, key, ca string) bool {
	return cert != "" && key != "" && ca != ""
}

// ValidateTLSFlags enforces the all-or-nothing rule for TLS material: all
// three of cert/key/ca must be set, or none of them.
func ValidateTLSFlags(cert, key, ca string) error {
	set := 0
	if cert != "" {
		set++
	}
	if key != "" {
		set++
	}
	if ca != "" {
		set++
	}
	if set != 0 && set != 3 {
		return &InvalidConfig{Reason: "registry TLS cert/key/ca must all be set, or none of them"}
	}
	return nil
}
