// Package app wires the voicememo services from Config: state and recording
// stores, artifact storage, the capture device, pre-roll, the processing
// pipeline, the entitlement service, the prompt engine and the optional
// control API. Both the CLI commands and the control API run through it.
package app
