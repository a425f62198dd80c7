package taint

import (
	"go-acscan/disassembler"
	"go-acscan/support"
	"go-acscan/utils"
)

// stackValue is one abstract word on the local simulated stack: whether it
// carries taint, and its concrete value when it is a literal produced by a
// PUSH (propagated through DUP/SWAP so SLOAD/SSTORE can resolve a literal
// slot number the same way a real interpreter would).
type stackValue struct {
	tainted bool
	known   *int
}

// blockSim runs spec §4.6's transfer function over one block's
// instructions. seedTainted approximates the block's incoming abstract
// stack: rather than tracking taint at an exact, cross-block-aligned stack
// depth (which would require a sound stack-height analysis this detector
// deliberately does not attempt — see the taint engine's design note),
// any operand a block consumes that it did not itself produce is treated
// as tainted exactly when the block is reachable from a taint source.
// This keeps the engine's bias toward over-approximation (spec §4.6,
// §9) without needing symbolic execution.
type blockSim struct {
	stack        []stackValue
	seedTainted  bool
	storageTaint map[int]bool
	memTaint     bool

	// sinkHits collects (slot, tainted) pairs observed at SSTORE sites in
	// this block, in instruction order.
	sinkHits []sinkHit

	// storageTaintChanged is true if this pass wrote any new storage taint bit
	// (used by the caller to detect fixpoint convergence).
	storageTaintChanged bool
	memTaintChanged     bool
}

type sinkHit struct {
	slot      int
	slotKnown bool
	tainted   bool
}

func newBlockSim(seedTainted bool, storageTaint map[int]bool, memTaint bool) *blockSim {
	return &blockSim{
		seedTainted:  seedTainted,
		storageTaint: storageTaint,
		memTaint:     memTaint,
	}
}

func (s *blockSim) pop() stackValue {
	if len(s.stack) == 0 {
		return stackValue{tainted: s.seedTainted}
	}
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v
}

func (s *blockSim) push(v stackValue) {
	s.stack = append(s.stack, v)
}

func (s *blockSim) peek(depthFromTop int) stackValue {
	idx := len(s.stack) - 1 - depthFromTop
	if idx < 0 {
		return stackValue{tainted: s.seedTainted}
	}
	return s.stack[idx]
}

// run executes every instruction in the block against the current
// storage/memory taint state, recording in storageTaintChanged and
// memTaintChanged whether any storage slot or the memory bit gained taint
// it did not already have (used to drive the outer fixpoint loop).
func (s *blockSim) run(instrs []*disassembler.EvmInstruction) {
	for _, instr := range instrs {
		s.step(instr)
	}
}

func (s *blockSim) step(instr *disassembler.EvmInstruction) {
	name := instr.Name()

	switch {
	case instr.OpCode.IsPush:
		var known *int
		if v, ok := utils.BytesToOffset(instr.PushData); ok {
			vv := v
			known = &vv
		}
		s.push(stackValue{tainted: false, known: known})
		return
	case support.IsTaintSource(name):
		for i := 0; i < instr.OpCode.Pop; i++ {
			s.pop()
		}
		for i := 0; i < instr.OpCode.Push; i++ {
			s.push(stackValue{tainted: true})
		}
		return
	}

	switch {
	case len(name) >= 3 && name[:3] == "DUP":
		n := dupSwapIndex(name, "DUP")
		v := s.peek(n - 1)
		s.push(v)
		return
	case len(name) >= 4 && name[:4] == "SWAP":
		n := dupSwapIndex(name, "SWAP")
		top := len(s.stack) - 1
		other := top - n
		if top < 0 || other < 0 {
			// Underflow: treat as two seed-tainted values, nothing to
			// actually swap.
			return
		}
		s.stack[top], s.stack[other] = s.stack[other], s.stack[top]
		return
	case name == "POP":
		s.pop()
		return
	case name == "SLOAD":
		addr := s.pop()
		var tainted bool
		if addr.known != nil {
			tainted = s.storageTaint[*addr.known]
		} else {
			tainted = s.seedTainted
		}
		s.push(stackValue{tainted: tainted})
		return
	case name == "SSTORE":
		key := s.pop()
		val := s.pop()
		if key.known != nil {
			slot := *key.known
			if val.tainted && !s.storageTaint[slot] {
				s.storageTaint[slot] = true
				s.storageTaintChanged = true
			}
			s.sinkHits = append(s.sinkHits, sinkHit{slot: slot, slotKnown: true, tainted: val.tainted})
		} else {
			s.sinkHits = append(s.sinkHits, sinkHit{slotKnown: false, tainted: val.tainted})
		}
		return
	case name == "MLOAD":
		s.pop()
		s.push(stackValue{tainted: s.memTaint})
		return
	case name == "MSTORE", name == "MSTORE8":
		s.pop() // offset
		val := s.pop()
		if val.tainted && !s.memTaint {
			s.memTaint = true
			s.memTaintChanged = true
		}
		return
	case isCallFamily(name):
		for i := 0; i < instr.OpCode.Pop; i++ {
			s.pop()
		}
		for i := 0; i < instr.OpCode.Push; i++ {
			s.push(stackValue{tainted: true})
		}
		return
	}

	// Generic fallback (spec §4.6): arithmetic/logical/compare and any
	// unlisted opcode propagate taint iff any popped input is tainted;
	// zero-input opcodes (ADDRESS, TIMESTAMP, ...) are therefore
	// correctly untainted.
	anyTainted := false
	for i := 0; i < instr.OpCode.Pop; i++ {
		if s.pop().tainted {
			anyTainted = true
		}
	}
	for i := 0; i < instr.OpCode.Push; i++ {
		s.push(stackValue{tainted: anyTainted})
	}
}

func dupSwapIndex(name, prefix string) int {
	n := 0
	for _, c := range name[len(prefix):] {
		n = n*10 + int(c-'0')
	}
	return n
}

func isCallFamily(name string) bool {
	switch name {
	case "CALL", "CALLCODE", "DELEGATECALL", "STATICCALL":
		return true
	}
	return false
}

