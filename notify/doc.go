// Package notify is the user-facing surface of the CLI: upsell prompts and
// capture warnings are delivered as desktop notifications through beeep, or
// written to a terminal when no desktop session is available.
package notify
