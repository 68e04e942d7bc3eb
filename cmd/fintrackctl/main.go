// Command fintrackctl reads and edits the ledger from a terminal, using the
// same configuration and storage as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(openEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
