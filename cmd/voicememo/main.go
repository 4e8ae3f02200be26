// Command voicememo records voice memos with pre-roll, runs the offline
// processing pipeline and serves the local control API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
