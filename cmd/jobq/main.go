// Command jobq operates a job queue from the command line: it submits and
// inspects jobs in a store and runs a scheduler whose "exec" worker runs
// shell commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
