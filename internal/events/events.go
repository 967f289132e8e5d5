// Package events holds the reason constant and message template for the
// Kubernetes Events the Rollout Executor creates, keeping the wording in
// one place rather than inline in internal/rollout.
package events

import "fmt"

// ReasonRolloutTriggered is the Event reason recorded on every triggered
// restart (spec.md §4.7).
const ReasonRolloutTriggered = "KrarRolloutTriggered"

// Component is the Event source.component value krar events carry.
const Component = "krar"

// RolloutMessage formats the audit message body for a triggered restart,
// recording the mode, smart-restart flag, and dry-run flag as required by
// spec.md §4.7.
func RolloutMessage(mode string, smartRestart, dryRun bool) string {
	return fmt.Sprintf(
		"krar triggered a rollout restart (mode=%s, smart-restart=%t, dry-run=%t)",
		mode, smartRestart, dryRun,
	)
}
