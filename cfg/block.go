package cfg

import "go-acscan/disassembler"

// BasicBlock is a contiguous half-open instruction range [Start, End) per
// spec §3: it begins either at offset 0 or at a JUMPDEST, and ends at a
// control-transfer instruction or immediately before the next JUMPDEST.
type BasicBlock struct {
	Start        int
	End          int // exclusive, offset one past the block's last instruction
	Instructions []*disassembler.EvmInstruction

	Predecessors map[int]bool
	Successors   map[int]bool
}

func newBlock(start int) *BasicBlock {
	return &BasicBlock{
		Start:        start,
		Predecessors: make(map[int]bool),
		Successors:   make(map[int]bool),
	}
}

// Terminator returns the block's last instruction, or nil for an empty
// block (can only happen for a trailing block truncated by decode-failure).
func (b *BasicBlock) Terminator() *disassembler.EvmInstruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// BuildBlocks partitions a disassembled instruction list into basic blocks
// per spec §4.2: a new block starts at offset 0 and at every instruction
// whose offset is a recorded JUMPDEST; a block ends at a control-transfer
// instruction (JUMP, JUMPI, STOP, RETURN, REVERT, SELFDESTRUCT, INVALID) or
// immediately before the next JUMPDEST.
func BuildBlocks(instrs []*disassembler.EvmInstruction) ([]*BasicBlock, map[int]int) {
	blocks := make([]*BasicBlock, 0)
	startIndex := make(map[int]int) // block-start offset -> index in blocks

	if len(instrs) == 0 {
		return blocks, startIndex
	}

	closeBlock := func(cur *BasicBlock, end int) {
		cur.End = end
		blocks = append(blocks, cur)
		startIndex[cur.Start] = len(blocks) - 1
	}

	var cur *BasicBlock
	prevTerminated := false
	for idx, instr := range instrs {
		startsNewBlock := idx == 0 || instr.IsJumpDest || prevTerminated
		if startsNewBlock && cur != nil {
			closeBlock(cur, instr.Address)
			cur = nil
		}
		if cur == nil {
			cur = newBlock(instr.Address)
		}
		cur.Instructions = append(cur.Instructions, instr)
		prevTerminated = isTerminator(instr.Name())

		if idx == len(instrs)-1 {
			last := instr
			closeBlock(cur, last.Address+instructionWidth(last))
			cur = nil
		} else if prevTerminated {
			last := instr
			closeBlock(cur, last.Address+instructionWidth(last))
			cur = nil
		}
	}

	return blocks, startIndex
}

func isTerminator(name string) bool {
	switch name {
	case "JUMP", "JUMPI", "STOP", "RETURN", "REVERT", "SELFDESTRUCT", "INVALID":
		return true
	}
	return len(name) >= 8 && name[:8] == "INVALID_"
}

func instructionWidth(i *disassembler.EvmInstruction) int {
	if i.OpCode.IsPush {
		return 1 + i.OpCode.PushSize
	}
	return 1
}
