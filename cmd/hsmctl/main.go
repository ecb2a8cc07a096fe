// Command hsmctl validates, draws, runs and serves state machine model files
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
