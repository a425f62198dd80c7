package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go-acscan/cfg"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
	"go-acscan/verdict"
)

func newArgsWithKeyVars(vars ...string) *support.Args {
	args := support.NewArgs()
	args.ContractPath = "Owned.sol"
	args.KeyVariables = vars
	return args
}

func emptyTaintResult(vars ...string) *taint.Result {
	sinks := make(map[string]*taint.SinkResult, len(vars))
	for _, v := range vars {
		sinks[v] = &taint.SinkResult{Var: v}
	}
	return &taint.Result{Sinks: sinks}
}

func TestBuild_GroupsFindingsByKeyVariableInDeclaredOrder(t *testing.T) {
	args := newArgsWithKeyVars("owner", "limit")
	bindings := map[string]*storage.Binding{
		"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar},
		"limit": {Name: "limit", Slot: 1, Type: storage.TypeScalar},
	}
	findings := []*verdict.Finding{
		{
			Var: "limit", Line: 10, Code: "limit = x;", Function: "setLimit",
			Verdict: verdict.VerdictDangerous, Confidence: verdict.ConfidenceLow,
			DetectionSource: "taint",
		},
		{
			Var: "owner", Line: 5, Code: "owner = n;", Function: "setOwner",
			Verdict: verdict.VerdictSafe, Confidence: verdict.ConfidenceHigh,
			Tags: []string{"access-control", "revert"}, HasSourceGuard: true,
			DetectionSource: "taint",
		},
	}

	r := Build(args, bindings, findings, &cfg.Graph{}, emptyTaintResult("owner", "limit"), false)

	if len(r.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(r.Results))
	}
	if r.Results[0].Variable != "owner" || r.Results[1].Variable != "limit" {
		t.Fatalf("expected results ordered owner,limit per KeyVariables, got %q,%q", r.Results[0].Variable, r.Results[1].Variable)
	}
	if !r.Results[1].HasVulnerability || r.Results[1].DangerousPathsCount != 1 {
		t.Fatalf("expected limit to be flagged vulnerable with one dangerous path, got %+v", r.Results[1])
	}
	if r.Results[0].HasVulnerability {
		t.Fatalf("owner's safe finding should not count as a vulnerability, got %+v", r.Results[0])
	}
	if r.Summary.VulnerableVariables != 1 || r.Summary.SafeVariables != 1 {
		t.Fatalf("expected one vulnerable and one safe variable, got summary=%+v", r.Summary)
	}
	if loc := r.Results[0].SuspiciousLocations; len(loc) != 0 {
		t.Fatalf("owner has no suspicious locations, got %+v", loc)
	}
	if got := r.Results[0].DangerousLocations; len(got) != 0 {
		t.Fatalf("owner has no dangerous locations, got %+v", got)
	}
}

func TestBuild_ReorderingKeyVarsPermutesResultsButPreservesContent(t *testing.T) {
	bindings := map[string]*storage.Binding{
		"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar},
		"limit": {Name: "limit", Slot: 1, Type: storage.TypeScalar},
	}
	findings := []*verdict.Finding{
		{Var: "owner", Line: 5, Verdict: verdict.VerdictDangerous, Confidence: verdict.ConfidenceLow, DetectionSource: "taint"},
		{Var: "limit", Line: 10, Verdict: verdict.VerdictDangerous, Confidence: verdict.ConfidenceLow, DetectionSource: "taint"},
	}

	r1 := Build(newArgsWithKeyVars("owner", "limit"), bindings, findings, &cfg.Graph{}, emptyTaintResult("owner", "limit"), false)
	r2 := Build(newArgsWithKeyVars("limit", "owner"), bindings, findings, &cfg.Graph{}, emptyTaintResult("owner", "limit"), false)

	if r1.Results[0].Variable != "owner" || r2.Results[0].Variable != "limit" {
		t.Fatalf("expected result order to follow KeyVariables order, got %q then %q", r1.Results[0].Variable, r2.Results[0].Variable)
	}

	byVar1 := indexByVariable(r1.Results)
	byVar2 := indexByVariable(r2.Results)
	for name := range byVar1 {
		b1, err1 := json.Marshal(byVar1[name])
		b2, err2 := json.Marshal(byVar2[name])
		if err1 != nil || err2 != nil {
			t.Fatalf("marshal failed: %v %v", err1, err2)
		}
		if string(b1) != string(b2) {
			t.Fatalf("expected %s's content to match across reorderings, got %s vs %s", name, b1, b2)
		}
	}
}

func indexByVariable(results []VariableResult) map[string]VariableResult {
	out := make(map[string]VariableResult, len(results))
	for _, r := range results {
		out[r.Variable] = r
	}
	return out
}

func TestBuild_IsDeterministicAcrossRepeatedRuns(t *testing.T) {
	args := newArgsWithKeyVars("owner")
	bindings := map[string]*storage.Binding{"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar}}
	findings := []*verdict.Finding{
		{Var: "owner", Line: 5, Code: "owner = n;", Function: "setOwner",
			Verdict: verdict.VerdictDangerous, Confidence: verdict.ConfidenceLow, DetectionSource: "taint"},
	}
	graph := &cfg.Graph{DynamicJumps: 2}
	taintResult := emptyTaintResult("owner")

	r1 := Build(args, bindings, findings, graph, taintResult, false)
	r2 := Build(args, bindings, findings, graph, taintResult, false)

	b1, err1 := json.Marshal(r1)
	b2, err2 := json.Marshal(r2)
	if err1 != nil || err2 != nil {
		t.Fatalf("marshal failed: %v %v", err1, err2)
	}
	if string(b1) != string(b2) {
		t.Fatalf("expected byte-identical reports for identical inputs, got:\n%s\nvs\n%s", b1, b2)
	}
}

func TestBuild_SensitiveFindingIsSeparatedFromKeyVariableResults(t *testing.T) {
	args := newArgsWithKeyVars("owner")
	bindings := map[string]*storage.Binding{"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar}}
	findings := []*verdict.Finding{
		{
			Line: 7, Code: "selfdestruct(owner);", Function: "kill",
			Verdict: verdict.VerdictDangerous, Confidence: verdict.ConfidenceLow,
			DetectionSource: "bytecode", Sensitive: true,
		},
	}

	r := Build(args, bindings, findings, &cfg.Graph{}, emptyTaintResult("owner"), false)

	if len(r.SensitiveFindings) != 1 {
		t.Fatalf("expected one sensitive finding, got %d", len(r.SensitiveFindings))
	}
	if r.SensitiveFindings[0].Function != "kill" {
		t.Fatalf("expected the selfdestruct finding to carry its function name, got %+v", r.SensitiveFindings[0])
	}
	if r.Results[0].HasVulnerability {
		t.Fatalf("a sensitive-sink finding with no Var must not attach to owner's result, got %+v", r.Results[0])
	}
	if r.Summary.SensitiveFindingsCount != 1 {
		t.Fatalf("expected summary.sensitive_findings_count=1, got %d", r.Summary.SensitiveFindingsCount)
	}
}

func TestBuild_SlotAmbiguousVariableIsCountedAndMarkedUnknown(t *testing.T) {
	args := newArgsWithKeyVars("owner")
	bindings := map[string]*storage.Binding{"owner": {Name: "owner", Ambiguous: true}}

	r := Build(args, bindings, nil, &cfg.Graph{}, emptyTaintResult("owner"), false)

	if r.Results[0].SlotKnown {
		t.Fatalf("expected slot_known=false for an ambiguous binding, got %+v", r.Results[0])
	}
	if r.Summary.SlotAmbiguousVariables != 1 {
		t.Fatalf("expected summary.slot_ambiguous_variables=1, got %d", r.Summary.SlotAmbiguousVariables)
	}
}

func TestBuild_IncompleteSinkIsSurfacedOnResultAndSummary(t *testing.T) {
	args := newArgsWithKeyVars("owner")
	bindings := map[string]*storage.Binding{"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar}}
	taintResult := &taint.Result{Sinks: map[string]*taint.SinkResult{
		"owner": {Var: "owner", Slot: 0, SlotKnown: true, Incomplete: true},
	}}

	r := Build(args, bindings, nil, &cfg.Graph{}, taintResult, false)

	if !r.Results[0].Incomplete {
		t.Fatalf("expected owner's result to carry incomplete=true, got %+v", r.Results[0])
	}
	if r.Summary.IncompleteSinks != 1 {
		t.Fatalf("expected summary.incomplete_sinks=1, got %d", r.Summary.IncompleteSinks)
	}
}

func TestWriteFinalReport_RoundTripsThroughOutputDir(t *testing.T) {
	args := newArgsWithKeyVars("owner")
	args.OutputDir = filepath.Join(t.TempDir(), "out")
	bindings := map[string]*storage.Binding{"owner": {Name: "owner", Slot: 0, Type: storage.TypeScalar}}
	r := Build(args, bindings, nil, &cfg.Graph{}, emptyTaintResult("owner"), false)

	if err := WriteFinalReport(args, r); err != nil {
		t.Fatalf("WriteFinalReport failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(args.OutputDir, "final_report.json"))
	if err != nil {
		t.Fatalf("expected final_report.json to exist: %v", err)
	}
	var roundTripped FinalReport
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("final_report.json did not unmarshal: %v", err)
	}
	if roundTripped.ContractPath != "Owned.sol" || len(roundTripped.Results) != 1 {
		t.Fatalf("round-tripped report mismatch: %+v", roundTripped)
	}
}
