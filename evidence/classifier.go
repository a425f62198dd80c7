// Package evidence implements the Guard Classifier (spec §4.7): for each
// taint path, walk the instructions along its blocks and collect the
// GuardEvidence tag set spec §3 defines - conditional-jump, comparison,
// revert, access-control - plus a raw evidence count for operator-visible
// reporting. Grounded on original_source/core/taint.py's
// _check_path_has_condition, which walks the same block sequence looking
// for a JUMPI/comparison/require pattern; this classifier splits that single
// boolean into the full tag set spec §4.7 wants.
package evidence

import (
	"sort"

	"go-acscan/cfg"
	"go-acscan/support"
	"go-acscan/taint"
)

const (
	TagConditionalJump = "conditional-jump"
	TagComparison      = "comparison"
	TagRevert          = "revert"
	TagAccessControl   = "access-control"
)

// sideBranchScanDepth bounds the forward search for a REVERT reachable off
// a JUMPI's untaken side branch (spec §4.7's "reachable on a side branch of
// a JUMPI along the path"); a handful of blocks covers every compiler
// pattern seen in the pack (a require/revert sits immediately off the
// branch, never behind a long unrelated chain).
const sideBranchScanDepth = 5

// Evidence is the GuardEvidence of spec §3: a tag set plus the raw
// instruction-level hit count operators can inspect when auditing a
// synthesized access-control tag.
type Evidence struct {
	Tags  map[string]bool
	Count int
}

// HasTag reports whether a tag was collected.
func (e *Evidence) HasTag(tag string) bool {
	return e.Tags[tag]
}

// SortedTags returns the tag set in a stable, deterministic order (spec
// §9's determinism requirement extends to every reported set).
func (e *Evidence) SortedTags() []string {
	out := make([]string, 0, len(e.Tags))
	for t := range e.Tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Classify walks every instruction in every block of p against g and
// returns its GuardEvidence, per spec §4.7's four rules in order.
func Classify(g *cfg.Graph, p *taint.TaintPath) *Evidence {
	ev := &Evidence{Tags: make(map[string]bool)}

	sawComparison := false
	sawCallerIdentity := false

	onPath := make(map[int]bool, len(p.Blocks))
	for _, start := range p.Blocks {
		onPath[start] = true
	}

	for i, start := range p.Blocks {
		b := g.BlockAt[start]
		if b == nil {
			continue
		}
		for _, instr := range b.Instructions {
			name := instr.Name()
			switch {
			case name == "JUMPI":
				mark(ev, TagConditionalJump)
				if revertOnSideBranch(g, b, p.Blocks, i, onPath) {
					mark(ev, TagRevert)
				}
			case support.IsComparison(name):
				mark(ev, TagComparison)
				sawComparison = true
			case name == "REVERT":
				mark(ev, TagRevert)
			case support.IsCallerIdentity(name):
				sawCallerIdentity = true
			}
		}
	}

	if sawCallerIdentity && sawComparison {
		mark(ev, TagAccessControl)
	}

	return ev
}

func mark(ev *Evidence, tag string) {
	if !ev.Tags[tag] {
		ev.Tags[tag] = true
	}
	ev.Count++
}

// revertOnSideBranch reports whether the successor of a JUMPI block NOT
// taken by the path leads, within a bounded forward scan, to a block
// terminated by REVERT - the compiled shape of a Solidity `require`/`if
// (...) revert(...)` guarding the path's continuation.
func revertOnSideBranch(g *cfg.Graph, jumpiBlock *cfg.BasicBlock, pathBlocks []int, idx int, onPath map[int]bool) bool {
	var nextOnPath int
	hasNext := idx+1 < len(pathBlocks)
	if hasNext {
		nextOnPath = pathBlocks[idx+1]
	}

	for _, succ := range cfg.SortedSuccessors(jumpiBlock) {
		if hasNext && succ == nextOnPath {
			continue
		}
		if reachesRevert(g, succ, sideBranchScanDepth) {
			return true
		}
	}
	return false
}

func reachesRevert(g *cfg.Graph, start int, depth int) bool {
	visited := map[int]bool{}
	queue := []struct {
		block int
		depth int
	}{{start, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.block] || cur.depth > depth {
			continue
		}
		visited[cur.block] = true
		b := g.BlockAt[cur.block]
		if b == nil {
			continue
		}
		if term := b.Terminator(); term != nil && term.Name() == "REVERT" {
			return true
		}
		for _, succ := range cfg.SortedSuccessors(b) {
			queue = append(queue, struct {
				block int
				depth int
			}{succ, cur.depth + 1})
		}
	}
	return false
}
