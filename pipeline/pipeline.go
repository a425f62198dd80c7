// Package pipeline orchestrates one end-to-end analysis run, wiring C1
// through C9 in the order spec §5 requires (C1<C2<C3; C4<C5; {C3,C5}<C6<C7<C8<C9).
// There is no teacher equivalent: go-mythril's orchestration is
// laser/ethereum/sym.go's symbolic-execution loop, which this detector has
// no use for (spec §1 Non-goals).
package pipeline

import (
	"os"

	"go-acscan/cfg"
	"go-acscan/compiler"
	"go-acscan/disassembler"
	"go-acscan/report"
	"go-acscan/source"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
	"go-acscan/verdict"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Run executes one full analysis of args.ContractPath against
// args.KeyVariables and writes final_report.json plus the intermediate
// artifacts under args.OutputDir. The returned error is only non-nil for
// spec §7's Input-malformed and unrecoverable-compiler conditions and for
// failures writing the report files; a
// Compile-failed contract still produces a report (with
// summary.compilation_failed set) rather than an error, matching the
// propagation policy of spec §7.
func Run(args *support.Args) (*report.FinalReport, error) {
	log.Info("Entering pipeline.Run")
	defer log.Info("Exiting pipeline.Run")

	if args.ContractPath == "" {
		return nil, errors.New("input-malformed: no contract path given")
	}
	if len(args.KeyVariables) == 0 {
		return nil, errors.New("input-malformed: empty key-variable list")
	}

	raw, err := os.ReadFile(args.ContractPath)
	if err != nil {
		return nil, errors.Wrapf(err, "input-malformed: read %s", args.ContractPath)
	}
	lines := splitLines(string(raw))

	compiled, err := compiler.Compile(args)
	if err != nil {
		return nil, errors.Wrap(err, "compile-failed")
	}
	if compiled.CompilationFailed || compiled.RuntimeBytecode == "" {
		log.Warnf("compilation failed or produced no runtime bytecode: %s", compiled.FailureReason)
		degraded := emptyReport(args)
		if err := report.WriteFinalReport(args, degraded); err != nil {
			return nil, errors.Wrap(err, "write degraded final report")
		}
		return degraded, nil
	}

	functions := source.ParseFunctions(lines)
	bindings := storage.Resolve(lines, compiled.ContractName, args.KeyVariables)

	disasm := disassembler.NewDisassembly(compiled.RuntimeBytecode)
	graph := cfg.Build(disasm, args.MaxBackscan)

	taintResult := taint.Run(graph, bindings, args)

	findings := verdict.Build(lines, functions, bindings, disasm, graph, compiled.SrcMapRuntime, taintResult, args)

	finalReport := report.Build(args, bindings, findings, graph, taintResult, false)
	if err := report.WriteFinalReport(args, finalReport); err != nil {
		return nil, errors.Wrap(err, "write final report")
	}
	if err := report.WriteIntermediates(args, disasm, graph, bindings, taintResult); err != nil {
		return nil, errors.Wrap(err, "write intermediate artifacts")
	}
	return finalReport, nil
}

// emptyReport builds the degraded report spec §7's Compile-failed entry
// calls for: every key variable marked unknown, no findings, the
// compilation_failed marker set.
func emptyReport(args *support.Args) *report.FinalReport {
	bindings := make(map[string]*storage.Binding, len(args.KeyVariables))
	for _, v := range args.KeyVariables {
		bindings[v] = &storage.Binding{Name: v, Ambiguous: true}
	}
	sinks := make(map[string]*taint.SinkResult, len(args.KeyVariables))
	for _, v := range args.KeyVariables {
		sinks[v] = &taint.SinkResult{Var: v}
	}
	taintResult := &taint.Result{Sinks: sinks}
	return report.Build(args, bindings, nil, &cfg.Graph{}, taintResult, true)
}

func splitLines(s string) []string {
	lines := make([]string, 0)
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			end := i
			if end > start && s[end-1] == '\r' {
				end--
			}
			lines = append(lines, s[start:end])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
