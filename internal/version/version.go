// Package version holds the build-time version string.
package version

// Version is overridden at build time via -ldflags "-X ... =v1.2.3".
var Version = "dev"
