package main

import (
	"fmt"
	"strings"

	"go-acscan/pipeline"
	"go-acscan/support"
	"go-acscan/utils"

	"github.com/spf13/cobra"
)

var (
	contractPath string
	keyVars      []string
	solcVersion  string
	outputDir    string
)

var analyzeCommand = &cobra.Command{
	Use:   "analyze",
	Short: "analyze a Solidity source file for access-control vulnerabilities",
	Run: func(*cobra.Command, []string) {
		analyzeExec()
	},
}

func init() {
	analyzeCommand.Flags().StringVar(&contractPath, "contract", "", "source file to analyze (required)")
	analyzeCommand.Flags().StringSliceVar(&keyVars, "key-vars", nil, "comma-separated key state variable names (required)")
	analyzeCommand.Flags().StringVar(&solcVersion, "solc-version", "", "compiler version string, e.g. 0.8.19 (required)")
	analyzeCommand.Flags().StringVar(&outputDir, "output-dir", "./output", "directory for final_report.json and intermediate artifacts")
}

func analyzeExec() {
	args := support.NewArgs()
	args.ContractPath = contractPath
	args.KeyVariables = keyVars
	args.SolcVersion = solcVersion
	args.OutputDir = outputDir

	if args.ContractPath == "" || len(args.KeyVariables) == 0 || args.SolcVersion == "" {
		fmt.Println("acscan analyze: --contract, --key-vars, and --solc-version are all required")
		exitCode = exitInputMalformed
		return
	}
	if dup := firstDuplicate(args.KeyVariables); dup != "" {
		fmt.Printf("acscan analyze: --key-vars lists %q more than once\n", dup)
		exitCode = exitInputMalformed
		return
	}

	result, err := pipeline.Run(args)
	if err != nil {
		fmt.Println(err)
		if strings.HasPrefix(err.Error(), "input-malformed") {
			exitCode = exitInputMalformed
		} else {
			exitCode = exitCompileFailed
		}
		return
	}

	if result.Summary.CompilationFailed {
		fmt.Printf("compilation failed for %s; see %s/final_report.json\n", args.ContractPath, args.OutputDir)
		exitCode = exitCompileFailed
		return
	}

	fmt.Printf(
		"analyzed %s: %d/%d key variables vulnerable, %d sensitive findings, report at %s/final_report.json\n",
		args.ContractPath,
		result.Summary.VulnerableVariables,
		result.Summary.TotalVariables,
		result.Summary.SensitiveFindingsCount,
		args.OutputDir,
	)
	exitCode = exitOK
}

// firstDuplicate reports the first key-variable name that recurs in the
// list, used to reject a `--key-vars a,a,b` typo at the driver boundary
// (spec §7's Input-malformed) before it reaches storage.Resolve.
func firstDuplicate(names []string) string {
	seen := make([]string, 0, len(names))
	for _, name := range names {
		if utils.In(name, seen) {
			return name
		}
		seen = append(seen, name)
	}
	return ""
}
