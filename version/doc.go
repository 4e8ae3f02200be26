// Package version reports voicememo build information.
//
// Version, commit, branch and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/voicememo/version.Version=1.2.0" ./cmd/voicememo
//
// Missing values fall back to the VCS stamps in runtime/debug.
package version
