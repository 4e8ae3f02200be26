// Package prompt decides when to surface upsell prompts.
//
// Each kind combines a one-time milestone trigger with a capped number of
// cooldown-spaced reminders. Evaluate runs decide-and-mark under a per-kind
// lock so that concurrent triggers for the same kind can show at most once.
package prompt
