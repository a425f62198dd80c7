package evidence

import (
	"testing"

	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/taint"
)

func mustBuildGraph(t *testing.T, codeHex string) *cfg.Graph {
	t.Helper()
	d := disassembler.NewDisassembly(codeHex)
	return cfg.Build(d, 10)
}

func TestClassify_ConditionalJumpWithRevertSideBranch(t *testing.T) {
	// PUSH1 1; PUSH1 10; JUMPI -> (fallthrough@5) REVERT; (taken@10)
	// JUMPDEST; PUSH1 0; SSTORE; STOP
	g := mustBuildGraph(t, "6001600a5760006000fd5b60005500")

	p := &taint.TaintPath{Blocks: []int{0, 10}, Sink: 10, Slot: 0, Var: "owner"}
	ev := Classify(g, p)

	if !ev.HasTag(TagConditionalJump) {
		t.Fatalf("expected conditional-jump tag, got %v", ev.SortedTags())
	}
	if !ev.HasTag(TagRevert) {
		t.Fatalf("expected revert tag from the JUMPI's side branch, got %v", ev.SortedTags())
	}
	if ev.HasTag(TagComparison) || ev.HasTag(TagAccessControl) {
		t.Fatalf("did not expect comparison or access-control without CALLER/EQ, got %v", ev.SortedTags())
	}
}

func TestClassify_CallerAndComparisonSynthesizeAccessControl(t *testing.T) {
	// CALLER; PUSH1 0; EQ; PUSH1 12; JUMPI -> (fallthrough@7) REVERT;
	// (taken@12) JUMPDEST; PUSH1 0; SSTORE; STOP
	g := mustBuildGraph(t, "33600014600c5760006000fd5b60005500")

	p := &taint.TaintPath{Blocks: []int{0, 12}, Sink: 12, Slot: 0, Var: "owner"}
	ev := Classify(g, p)

	want := []string{TagAccessControl, TagComparison, TagConditionalJump, TagRevert}
	for _, tag := range want {
		if !ev.HasTag(tag) {
			t.Fatalf("expected tag %q, got %v", tag, ev.SortedTags())
		}
	}
}

func TestClassify_NoJumpNoComparisonYieldsEmptyTagSet(t *testing.T) {
	// PUSH1 5; PUSH1 0; SSTORE; STOP -- a straight-line write, no guard at all.
	g := mustBuildGraph(t, "600560005500")

	p := &taint.TaintPath{Blocks: []int{0}, Sink: 0, Slot: 0, Var: "owner"}
	ev := Classify(g, p)

	if len(ev.SortedTags()) != 0 {
		t.Fatalf("expected an empty tag set for an unguarded write, got %v", ev.SortedTags())
	}
}
