// Command conductor is the interactive and scriptable entrypoint to the
// agent runtime: a REPL with slash-command, steering, follow-up, and
// file-reference grammar, a one-shot `run` mode for scripted invocations,
// JSON event output for programmatic consumers, and an RPC stdio mode for
// embedding in another process.
package main

import (
	"fmt"
	"os"
)

func main() {
	// Every failure this process can produce today — a bad config file, a
	// provider error, an adapter that never starts — exits 1; 0 is reserved
	// for a clean run. buildRootCmd is factored out from main so tests can
	// exercise command wiring without calling os.Exit.
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
