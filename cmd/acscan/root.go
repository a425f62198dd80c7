package main

import "github.com/spf13/cobra"

// exitCode is set by analyzeExec so main can turn spec §7's propagation
// policy ("the orchestrator surfaces fatal conditions as driver exit
// codes") into a process exit status after cobra's Execute returns.
var exitCode int

const (
	exitOK             = 0
	exitCompileFailed  = 1
	exitInputMalformed = 2
)

var rootCommand = &cobra.Command{
	Use:   "acscan",
	Short: "access-control vulnerability detector for EVM bytecode",
}

func init() {
	rootCommand.AddCommand(analyzeCommand)
}
