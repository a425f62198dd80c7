// Package report builds C9's final_report.json (spec §4.9, §6) and the
// intermediate debugging artefacts, grounded on
// _examples/original_source/core/report.py's result-shaping (minus its HTML
// rendering, which SPEC_FULL.md drops as out of scope) and on the teacher's
// plain encoding/json usage elsewhere in go-mythril.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
	"go-acscan/verdict"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Location is one reportable finding's source-level rendering, the literal
// location object of spec §6.
type Location struct {
	Line                  int      `json:"line"`
	Code                  string   `json:"code"`
	Function              string   `json:"function"`
	HasSourceCondition    bool     `json:"has_source_condition"`
	HasBytecodeCondition  bool     `json:"has_bytecode_condition"`
	BytecodeConditionType []string `json:"bytecode_condition_types"`
	Confidence            string   `json:"confidence"`
	DetectionMethod       string   `json:"detection_method"`
	Warning               string   `json:"warning"`
}

// VariableResult is one entry of the root `results` array (spec §6): the
// per-key-variable rollup of every dangerous/suspicious location found for
// it.
type VariableResult struct {
	Variable              string     `json:"variable"`
	StorageSlot           int        `json:"storage_slot"`
	SlotKnown             bool       `json:"slot_known"`
	HasVulnerability      bool       `json:"has_vulnerability"`
	DangerousPathsCount   int        `json:"dangerous_paths_count"`
	SuspiciousPathsCount  int        `json:"suspicious_paths_count"`
	DangerousLocations    []Location `json:"dangerous_locations"`
	SuspiciousLocations   []Location `json:"suspicious_locations"`
	Incomplete            bool       `json:"incomplete"`
}

// SensitiveFinding is a selfdestruct/delegatecall-class finding, additive
// to spec §6's literal schema since sensitive-sink findings carry no key
// variable to group under (S6).
type SensitiveFinding struct {
	Location
	// Sensitivity is a slot for the matched keyword (selfdestruct, suicide,
	// delegatecall, callcode); Build leaves it empty and it is not
	// serialized.
	Sensitivity string `json:"-"`
}

// Summary is the root `summary` counts object (spec §6), extended with the
// spec §7 error-taxonomy counters that are first-class result fields, not
// Go errors.
type Summary struct {
	TotalVariables        int  `json:"total_variables"`
	VulnerableVariables    int  `json:"vulnerable_variables"`
	SafeVariables          int  `json:"safe_variables"`
	SlotAmbiguousVariables int  `json:"slot_ambiguous_variables"`
	SensitiveFindingsCount int  `json:"sensitive_findings_count"`
	DynamicJumps           int  `json:"dynamic_jumps"`
	IncompleteSinks        int  `json:"incomplete_sinks"`
	CompilationFailed      bool `json:"compilation_failed"`
}

// FinalReport is the root object of final_report.json (spec §6).
type FinalReport struct {
	ContractPath      string             `json:"contract_path"`
	KeyVariables      []string           `json:"key_variables"`
	Summary           Summary            `json:"summary"`
	Results           []VariableResult   `json:"results"`
	SensitiveFindings []SensitiveFinding `json:"sensitive_findings"`
}

// Build assembles the FinalReport from the pipeline's artifacts. It is a
// pure function of its arguments (SPEC_FULL.md's determinism requirement):
// no wall-clock timestamps, no map iteration order leaking into output -
// results are ordered by args.KeyVariables, and every nested slice the
// caller passes in has already been sorted deterministically upstream
// (verdict.Build sorts by line then variable name).
func Build(
	args *support.Args,
	bindings map[string]*storage.Binding,
	findings []*verdict.Finding,
	graph *cfg.Graph,
	taintResult *taint.Result,
	compilationFailed bool,
) *FinalReport {
	log.Info("Entering report.Build")
	defer log.Info("Exiting report.Build")

	byVar := make(map[string][]*verdict.Finding)
	sensitive := make([]*verdict.Finding, 0)
	for _, f := range findings {
		if f.Sensitive {
			sensitive = append(sensitive, f)
			continue
		}
		byVar[f.Var] = append(byVar[f.Var], f)
	}

	summary := Summary{
		TotalVariables:    len(args.KeyVariables),
		CompilationFailed: compilationFailed,
	}
	if graph != nil {
		summary.DynamicJumps = graph.DynamicJumps
	}

	results := make([]VariableResult, 0, len(args.KeyVariables))
	for _, varName := range args.KeyVariables {
		binding := bindings[varName]
		vr := VariableResult{
			Variable:            varName,
			DangerousLocations:  make([]Location, 0),
			SuspiciousLocations: make([]Location, 0),
		}
		if binding == nil || binding.Ambiguous {
			vr.SlotKnown = false
			summary.SlotAmbiguousVariables++
		} else {
			vr.SlotKnown = true
			vr.StorageSlot = binding.Slot
		}
		if sink := taintResult.Sinks[varName]; sink != nil && sink.Incomplete {
			vr.Incomplete = true
			summary.IncompleteSinks++
		}

		for _, f := range byVar[varName] {
			loc := toLocation(f)
			switch f.Verdict {
			case "dangerous":
				vr.DangerousLocations = append(vr.DangerousLocations, loc)
				vr.DangerousPathsCount++
			case "suspicious":
				vr.SuspiciousLocations = append(vr.SuspiciousLocations, loc)
				vr.SuspiciousPathsCount++
			}
		}
		vr.HasVulnerability = vr.DangerousPathsCount > 0 || vr.SuspiciousPathsCount > 0

		if vr.HasVulnerability {
			summary.VulnerableVariables++
		} else {
			summary.SafeVariables++
		}
		results = append(results, vr)
	}

	sort.SliceStable(sensitive, func(i, j int) bool { return sensitive[i].Line < sensitive[j].Line })
	sensitiveOut := make([]SensitiveFinding, 0, len(sensitive))
	for _, f := range sensitive {
		sensitiveOut = append(sensitiveOut, SensitiveFinding{Location: toLocation(f)})
	}
	summary.SensitiveFindingsCount = len(sensitiveOut)

	return &FinalReport{
		ContractPath:      args.ContractPath,
		KeyVariables:      args.KeyVariables,
		Summary:           summary,
		Results:           results,
		SensitiveFindings: sensitiveOut,
	}
}

func toLocation(f *verdict.Finding) Location {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return Location{
		Line:                  f.Line,
		Code:                  f.Code,
		Function:              f.Function,
		HasSourceCondition:    f.HasSourceGuard,
		HasBytecodeCondition:  len(f.Tags) > 0,
		BytecodeConditionType: tags,
		Confidence:            f.Confidence,
		DetectionMethod:       f.DetectionSource,
		Warning:               f.Reason,
	}
}

// WriteFinalReport marshals and writes final_report.json under
// args.OutputDir, creating the directory if necessary.
func WriteFinalReport(args *support.Args, r *FinalReport) error {
	if err := os.MkdirAll(args.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "create output dir %s", args.OutputDir)
	}
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal final report")
	}
	path := filepath.Join(args.OutputDir, "final_report.json")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// disassemblyRow is one instruction row of the intermediate disassembly
// artifact. PushAddress is the checksummed hex form of a PUSH immediate
// when it is exactly 20 bytes wide (an address-shaped constant), following
// the same heuristic go-ethereum's own tooling uses to decide whether a
// 32-byte word is worth rendering as an address.
type disassemblyRow struct {
	Offset      int    `json:"offset"`
	Op          string `json:"op"`
	PushHex     string `json:"push_hex,omitempty"`
	PushAddress string `json:"push_address,omitempty"`
	IsJumpDest  bool   `json:"is_jump_dest"`
}

type cfgEdgeRow struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type storageRow struct {
	Name      string `json:"name"`
	Slot      int    `json:"slot"`
	Type      string `json:"type"`
	Ambiguous bool   `json:"ambiguous"`
}

type taintPathRow struct {
	Var    string `json:"var"`
	Slot   int    `json:"slot"`
	Sink   int    `json:"sink"`
	Blocks []int  `json:"blocks"`
}

// WriteIntermediates writes the debugging artefacts spec §6 lists
// (disassembly, CFG edges, storage mapping, taint path records) under
// args.OutputDir/intermediate, mirroring the original's
// intermediate/source_mapping.json convention.
func WriteIntermediates(
	args *support.Args,
	disasm *disassembler.Disassembly,
	graph *cfg.Graph,
	bindings map[string]*storage.Binding,
	taintResult *taint.Result,
) error {
	log.Info("Entering report.WriteIntermediates")
	defer log.Info("Exiting report.WriteIntermediates")

	dir := filepath.Join(args.OutputDir, "intermediate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create intermediate dir %s", dir)
	}

	if err := writeJSON(dir, "disassembly.json", disassemblyRows(disasm)); err != nil {
		return err
	}
	if err := writeJSON(dir, "cfg_edges.json", cfgEdgeRows(graph)); err != nil {
		return err
	}
	if err := writeJSON(dir, "storage_mapping.json", storageRows(bindings)); err != nil {
		return err
	}
	if err := writeJSON(dir, "taint_paths.json", taintPathRows(taintResult)); err != nil {
		return err
	}
	return nil
}

func writeJSON(dir, name string, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func disassemblyRows(d *disassembler.Disassembly) []disassemblyRow {
	if d == nil {
		return []disassemblyRow{}
	}
	rows := make([]disassemblyRow, 0, len(d.InstructionList))
	for _, instr := range d.InstructionList {
		row := disassemblyRow{
			Offset:     instr.Address,
			Op:         instr.Name(),
			IsJumpDest: instr.IsJumpDest,
		}
		if len(instr.PushData) > 0 {
			row.PushHex = common.Bytes2Hex(instr.PushData)
			if len(instr.PushData) == 20 {
				row.PushAddress = common.BytesToAddress(instr.PushData).Hex()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func cfgEdgeRows(g *cfg.Graph) []cfgEdgeRow {
	if g == nil {
		return []cfgEdgeRow{}
	}
	rows := make([]cfgEdgeRow, 0)
	starts := make([]int, 0, len(g.Blocks))
	for _, b := range g.Blocks {
		starts = append(starts, b.Start)
	}
	sort.Ints(starts)
	for _, start := range starts {
		b := g.BlockAt[start]
		for _, succ := range cfg.SortedSuccessors(b) {
			rows = append(rows, cfgEdgeRow{From: b.Start, To: succ})
		}
	}
	return rows
}

func storageRows(bindings map[string]*storage.Binding) []storageRow {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]storageRow, 0, len(names))
	for _, name := range names {
		b := bindings[name]
		rows = append(rows, storageRow{Name: b.Name, Slot: b.Slot, Type: b.Type, Ambiguous: b.Ambiguous})
	}
	return rows
}

func taintPathRows(r *taint.Result) []taintPathRow {
	if r == nil {
		return []taintPathRow{}
	}
	names := make([]string, 0, len(r.Sinks))
	for name := range r.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([]taintPathRow, 0)
	for _, name := range names {
		sink := r.Sinks[name]
		for _, p := range sink.Paths {
			rows = append(rows, taintPathRow{Var: p.Var, Slot: p.Slot, Sink: p.Sink, Blocks: p.Blocks})
		}
	}
	return rows
}
