// Command acscan is the CLI driver spec §6 treats as an external
// collaborator: it owns flag parsing and the process exit code, and hands
// everything else to the pipeline package. Grounded on
// other_examples/Notation-gscanner's analyze.go (cobra command +
// package-level flag variable, Run delegating to a separate Exec function)
// rather than the teacher's bare main.go, which never parsed a single flag.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode)
	}
	os.Exit(exitCode)
}
