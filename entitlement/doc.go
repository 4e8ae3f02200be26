// Package entitlement maps subscription tiers to capabilities and owns the
// persisted current tier.
//
// Capabilities is a pure function: the pipeline planner and the UI both call
// it with the same tier and always agree on which stages will run.
package entitlement
