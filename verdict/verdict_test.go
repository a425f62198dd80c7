package verdict

import (
	"strings"
	"testing"

	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/source"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
)

func TestBuild_UnguardedTaintedWriteIsDangerous(t *testing.T) {
	lines := strings.Split(`contract E {
    uint256 public value;

    function setValue(uint256 _value) public {
        value = _value;
    }
}`, "\n")
	functions := source.ParseFunctions(lines)
	bindings := map[string]*storage.Binding{
		"value": {Name: "value", Slot: 0, Type: storage.TypeScalar},
	}

	// PUSH1 0; CALLDATALOAD; PUSH1 0; SSTORE; STOP -- five instructions, the
	// SSTORE sits at index 3 and maps to the "value = _value;" line below.
	d := disassembler.NewDisassembly("60003560005500")
	g := cfg.Build(d, 10)

	args := support.NewArgs()
	taintResult := taint.Run(g, bindings, args)

	srcmapRuntime := "0:1:0:-;0:1:0:-;0:1:0:-;92:1:0:-;92:1:0:-"

	findings := Build(lines, functions, bindings, d, g, srcmapRuntime, taintResult, args)

	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Var != "value" || f.Line != 5 {
		t.Fatalf("expected value's write mapped to line 5, got %+v", f)
	}
	if f.Verdict != VerdictDangerous || f.Confidence != ConfidenceLow {
		t.Fatalf("expected dangerous/low for an unguarded tainted write, got verdict=%s confidence=%s", f.Verdict, f.Confidence)
	}
	if f.DetectionSource != "taint" {
		t.Fatalf("expected DetectionSource=taint, got %q", f.DetectionSource)
	}
	if len(f.Tags) != 0 {
		t.Fatalf("expected no guard tags on a straight-line write, got %v", f.Tags)
	}
}

func TestBuild_GuardedCallerComparisonIsSafe(t *testing.T) {
	lines := strings.Split(`contract E {
    uint256 public value;

    function setValue(uint256 _value) public {
        require(msg.sender == value);
        value = _value;
    }
}`, "\n")
	functions := source.ParseFunctions(lines)
	bindings := map[string]*storage.Binding{
		"value": {Name: "value", Slot: 0, Type: storage.TypeScalar},
	}

	// CALLER; PUSH1 0; EQ; PUSH1 12; JUMPI -> (fallthrough@7) REVERT;
	// (taken@12) JUMPDEST; PUSH1 0; CALLDATALOAD; PUSH1 0; SSTORE; STOP
	codeHex := "33600014600c5760006000fd5b60003560005500"
	d := disassembler.NewDisassembly(codeHex)
	g := cfg.Build(d, 10)

	args := support.NewArgs()
	taintResult := taint.Run(g, bindings, args)

	sink := taintResult.Sinks["value"]
	if sink == nil || len(sink.Paths) == 0 {
		t.Fatalf("expected a taint path reaching value's slot, got %+v", sink)
	}

	// Map every instruction to line 6, the guarded write, so the fusion
	// table sees both a bytecode and a source guard.
	entries := make([]string, len(d.InstructionList))
	for i := range entries {
		entries[i] = "130:1:0:-"
	}
	srcmapRuntime := strings.Join(entries, ";")

	findings := Build(lines, functions, bindings, d, g, srcmapRuntime, taintResult, args)

	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Verdict != VerdictSafe || f.Confidence != ConfidenceHigh {
		t.Fatalf("expected safe/high for a caller-checked write, got verdict=%s confidence=%s tags=%v", f.Verdict, f.Confidence, f.Tags)
	}
	if !containsTag(f.Tags, "access-control") {
		t.Fatalf("expected the access-control tag to be synthesized, got %v", f.Tags)
	}
}

func TestBuild_AmbiguousBindingProducesNoTaintFinding(t *testing.T) {
	lines := strings.Split(`contract E {
    function setValue(uint256 _value) public {
        value = _value;
    }
}`, "\n")
	functions := source.ParseFunctions(lines)
	bindings := map[string]*storage.Binding{
		"value": {Name: "value", Ambiguous: true},
	}

	d := disassembler.NewDisassembly("60003560005500")
	g := cfg.Build(d, 10)
	args := support.NewArgs()
	taintResult := taint.Run(g, bindings, args)

	findings := Build(lines, functions, bindings, d, g, "", taintResult, args)

	for _, f := range findings {
		if f.DetectionSource == "taint" {
			t.Fatalf("did not expect a taint-sourced finding for an ambiguous binding, got %+v", f)
		}
	}
}
