package cfg

import (
	"sort"

	"go-acscan/disassembler"
	"go-acscan/utils"
)

// backscanHalt is the set of stack-mutating instructions that invalidate a
// PUSH found earlier in a backward scan (spec §4.3): if one of these sits
// between the PUSH and the JUMP/JUMPI, the pushed value is not what reaches
// the jump, so static resolution must fail.
var backscanHalt = map[string]bool{
	"ADD": true, "SUB": true, "MUL": true, "DIV": true, "MOD": true,
	"MLOAD": true, "SLOAD": true, "JUMP": true, "JUMPI": true,
}

// Graph is the CFG of spec §3: successor/predecessor sets keyed by
// block-start offset, built over the BasicBlocks produced by BuildBlocks.
type Graph struct {
	Blocks    []*BasicBlock
	BlockAt   map[int]*BasicBlock // block-start offset -> block
	JumpDests map[int]bool

	// DynamicJumps counts unresolved JUMP/JUMPI sites that fell back to the
	// conservative over-approximation (spec §7's dynamic_jumps counter).
	DynamicJumps int
}

// Build runs C2 (BuildBlocks) then C3 (edge resolution) over a Disassembly.
func Build(d *disassembler.Disassembly, maxBackscan int) *Graph {
	blocks, _ := BuildBlocks(d.InstructionList)

	g := &Graph{
		Blocks:    blocks,
		BlockAt:   make(map[int]*BasicBlock, len(blocks)),
		JumpDests: d.JumpDests,
	}
	for _, b := range blocks {
		g.BlockAt[b.Start] = b
	}

	allJumpDests := sortedJumpDests(d.JumpDests)

	for idx, b := range blocks {
		term := b.Terminator()
		if term == nil {
			continue
		}
		switch term.Name() {
		case "STOP", "RETURN", "REVERT", "SELFDESTRUCT", "INVALID":
			// no successors
		case "JUMP":
			target, ok := g.resolveStaticTarget(b, maxBackscan)
			if ok && g.JumpDests[target] {
				g.addEdge(b, target)
			} else {
				g.DynamicJumps++
				g.addFallback(b, allJumpDests)
			}
		case "JUMPI":
			target, ok := g.resolveStaticTarget(b, maxBackscan)
			if ok && g.JumpDests[target] {
				g.addEdge(b, target)
			} else {
				g.DynamicJumps++
				g.addFallback(b, allJumpDests)
			}
			if idx+1 < len(blocks) {
				g.addEdge(b, blocks[idx+1].Start)
			}
		default:
			if isTerminator(term.Name()) {
				// INVALID_<hex> placeholder: no successors.
				continue
			}
			// Block ended because the next instruction is a JUMPDEST
			// (no explicit terminator): single fall-through edge.
			if idx+1 < len(blocks) {
				g.addEdge(b, blocks[idx+1].Start)
			}
		}
	}

	return g
}

func (g *Graph) addEdge(from *BasicBlock, to int) {
	toBlock, ok := g.BlockAt[to]
	if !ok {
		return
	}
	from.Successors[to] = true
	toBlock.Predecessors[from.Start] = true
}

func (g *Graph) addFallback(from *BasicBlock, allJumpDests []int) {
	for _, to := range allJumpDests {
		g.addEdge(from, to)
	}
}

// resolveStaticTarget implements spec §4.3's backward scan: walk backwards
// from the JUMP/JUMPI within the same block for up to maxBackscan
// instructions; the first PUSHn found before any stack-mutating instruction
// in backscanHalt supplies the target.
func (g *Graph) resolveStaticTarget(b *BasicBlock, maxBackscan int) (int, bool) {
	instrs := b.Instructions
	// instrs[len-1] is the JUMP/JUMPI itself; scan instrs[len-2] downwards.
	steps := 0
	for i := len(instrs) - 2; i >= 0 && steps < maxBackscan; i, steps = i-1, steps+1 {
		instr := instrs[i]
		if instr.OpCode.IsPush {
			offset, ok := utils.BytesToOffset(instr.PushData)
			if !ok {
				return 0, false
			}
			return offset, true
		}
		if backscanHalt[instr.Name()] {
			return 0, false
		}
	}
	return 0, false
}

func sortedJumpDests(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// SortedSuccessors returns a block's successor offsets in ascending order,
// the stable iteration order spec §9 requires.
func SortedSuccessors(b *BasicBlock) []int {
	out := make([]int, 0, len(b.Successors))
	for k := range b.Successors {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
