// Package taint implements spec §4.6's reaching-taint dataflow: a
// per-block abstract stack/memory/storage lattice propagated to fixpoint
// over the CFG, followed by bounded BFS path enumeration from every taint
// source to every storage write that lands a tainted value in a key slot.
package taint

import (
	"sort"

	"go-acscan/cfg"
	"go-acscan/storage"
	"go-acscan/support"

	log "github.com/sirupsen/logrus"
)

// TaintPath is the ordered block-start sequence of spec §3, from a taint
// source block to a sink block writing a key slot.
type TaintPath struct {
	Blocks []int
	Sink   int
	Slot   int
	Var    string
}

// SinkResult bundles every recorded path for one key variable, plus the
// spec §7 incomplete annotation for when a bound was hit.
type SinkResult struct {
	Var        string
	Slot       int
	SlotKnown  bool
	Paths      []*TaintPath
	Incomplete bool
}

// Result is the taint engine's full output, keyed by key-variable name.
type Result struct {
	Sinks        map[string]*SinkResult
	SourceBlocks []int
}

// Run executes C6 over a built CFG for the requested key-variable
// bindings.
func Run(g *cfg.Graph, bindings map[string]*storage.Binding, args *support.Args) *Result {
	log.Info("Entering taint.Run")
	defer log.Info("Exiting taint.Run")

	sourceBlocks := findSourceBlocks(g)
	reachable := reachabilityFrom(g, sourceBlocks)

	storageTaint, memTaint := runFixpoint(g, reachable)

	slotToVars := make(map[int][]string)
	for name, b := range bindings {
		if !b.Ambiguous {
			slotToVars[b.Slot] = append(slotToVars[b.Slot], name)
		}
	}

	sinkBlocksByVar := collectSinkBlocks(g, reachable, storageTaint, memTaint, slotToVars)

	result := &Result{
		Sinks:        make(map[string]*SinkResult),
		SourceBlocks: sourceBlocks,
	}
	for name, b := range bindings {
		sr := &SinkResult{Var: name, Slot: b.Slot, SlotKnown: !b.Ambiguous}
		if !b.Ambiguous {
			hits := sinkBlocksByVar[name]
			sr.Paths, sr.Incomplete = enumeratePaths(g, sourceBlocks, hits, b.Slot, name, args)
		}
		result.Sinks[name] = sr
	}
	return result
}

func findSourceBlocks(g *cfg.Graph) []int {
	set := make(map[int]bool)
	for _, b := range g.Blocks {
		for _, instr := range b.Instructions {
			if support.IsTaintSource(instr.Name()) {
				set[b.Start] = true
				break
			}
		}
	}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// reachabilityFrom computes plain CFG reachability (no bounds) from the
// given source blocks, used only to seed the local stack-underflow taint
// approximation in blockSim — not to record paths.
func reachabilityFrom(g *cfg.Graph, sources []int) map[int]bool {
	reach := make(map[int]bool)
	queue := append([]int{}, sources...)
	for _, s := range sources {
		reach[s] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		b := g.BlockAt[cur]
		if b == nil {
			continue
		}
		for _, succ := range cfg.SortedSuccessors(b) {
			if !reach[succ] {
				reach[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return reach
}

// runFixpoint repeats the per-block simulation until no block produces new
// storage or memory taint, per spec §4.6's "fixpoint is reached when a
// full pass leaves all block in-states unchanged". The pass count is
// bounded by the block count plus a small constant since taint only grows
// monotonically over a finite slot/memory-bit lattice.
func runFixpoint(g *cfg.Graph, reachable map[int]bool) (map[int]bool, bool) {
	storageTaint := make(map[int]bool)
	memTaint := false

	maxPasses := len(g.Blocks) + 4
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, b := range sortedBlocks(g.Blocks) {
			sim := newBlockSim(reachable[b.Start], storageTaint, memTaint)
			sim.run(b.Instructions)
			if sim.storageTaintChanged {
				changed = true
			}
			if sim.memTaintChanged {
				memTaint = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return storageTaint, memTaint
}

func sortedBlocks(blocks []*cfg.BasicBlock) []*cfg.BasicBlock {
	out := append([]*cfg.BasicBlock{}, blocks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// collectSinkBlocks re-runs the simulation once more at the converged
// storage/memory state and records, per variable, every block containing
// an SSTORE that wrote a tainted value to that variable's slot.
func collectSinkBlocks(g *cfg.Graph, reachable map[int]bool, storageTaint map[int]bool, memTaint bool, slotToVars map[int][]string) map[string][]int {
	out := make(map[string][]int)
	for _, b := range sortedBlocks(g.Blocks) {
		sim := newBlockSim(reachable[b.Start], storageTaint, memTaint)
		sim.run(b.Instructions)
		for _, hit := range sim.sinkHits {
			if !hit.slotKnown || !hit.tainted {
				continue
			}
			for _, name := range slotToVars[hit.slot] {
				out[name] = append(out[name], b.Start)
			}
		}
	}
	return out
}

// enumeratePaths performs the bounded BFS of spec §4.6/§5: from every
// source block to every sink block for this variable, a maximum path
// length of args.MaxPathLength blocks, visiting any single block at most
// args.MaxBlockVisits times on one path, recording at most
// args.MaxPathsPerSink paths total before marking the result incomplete.
func enumeratePaths(g *cfg.Graph, sources []int, sinks []int, slot int, varName string, args *support.Args) ([]*TaintPath, bool) {
	sinkSet := make(map[int]bool)
	for _, s := range sinks {
		sinkSet[s] = true
	}
	if len(sinkSet) == 0 {
		return nil, false
	}

	type frame struct {
		block   int
		path    []int
		visits  map[int]int
	}

	paths := make([]*TaintPath, 0)
	incomplete := false

	for _, src := range sources {
		if len(paths) >= args.MaxPathsPerSink {
			incomplete = true
			break
		}
		queue := []frame{{block: src, path: []int{src}, visits: map[int]int{src: 1}}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]

			if sinkSet[cur.block] {
				p := &TaintPath{Blocks: append([]int{}, cur.path...), Sink: cur.block, Slot: slot, Var: varName}
				paths = append(paths, p)
				if len(paths) >= args.MaxPathsPerSink {
					incomplete = true
					break
				}
			}

			if len(cur.path) >= args.MaxPathLength {
				incomplete = true
				continue
			}

			b := g.BlockAt[cur.block]
			if b == nil {
				continue
			}
			for _, succ := range cfg.SortedSuccessors(b) {
				visits := cloneVisits(cur.visits)
				visits[succ]++
				if visits[succ] > args.MaxBlockVisits {
					incomplete = true
					continue
				}
				queue = append(queue, frame{
					block:  succ,
					path:   append(append([]int{}, cur.path...), succ),
					visits: visits,
				})
			}
		}
		if len(paths) >= args.MaxPathsPerSink {
			break
		}
	}

	return paths, incomplete
}

func cloneVisits(v map[int]int) map[int]int {
	out := make(map[int]int, len(v))
	for k, n := range v {
		out[k] = n
	}
	return out
}
