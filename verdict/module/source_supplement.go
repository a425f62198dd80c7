package module

import (
	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/source"
)

// SourceSupplementModule implements spec §4.8's supplementary detection:
// a write Usage that the taint engine never reached on its specific line
// (it doesn't syntactically trace back to a taint source) still gets a
// finding when its containing function is public/external, since an
// unprotected setter with no tainted input is still an unprotected setter.
// Coverage is tracked per line, not per variable: a variable can have one
// write the taint engine reaches and a second write it never does (e.g. two
// setters for the same key variable), and only the untouched line is this
// module's concern.
type SourceSupplementModule struct{}

func (m *SourceSupplementModule) Name() string { return "SourceSupplement" }

func (m *SourceSupplementModule) Execute(ctx *Context) []*Finding {
	out := make([]*Finding, 0)

	for varName, binding := range ctx.Bindings {
		if binding.Ambiguous {
			continue
		}
		taintedLines := taintReachedLines(ctx, varName)

		for _, usage := range source.FindUsages(ctx.Lines, ctx.Functions, varName) {
			if usage.Operation != source.OpWrite {
				continue
			}
			if taintedLines[usage.Line] {
				continue
			}
			fn := usage.Function
			if fn == nil || !eligible(fn) {
				continue
			}

			hasAccessControl := source.HasAccessControl(fn, source.BodyLines(ctx.Lines, fn))
			hasGuard := usage.SourceHasCondition || len(fn.Modifiers) > 0

			verdict, confidence, reason := classify(hasAccessControl, hasGuard)

			out = append(out, &Finding{
				Var:             varName,
				Slot:            binding.Slot,
				SlotKnown:       true,
				Line:            usage.Line,
				Code:            usage.Code,
				Function:        fn.Name,
				HasSourceGuard:  hasGuard,
				Verdict:         verdict,
				Confidence:      confidence,
				Reason:          reason,
				DetectionSource: "source",
			})
		}
	}
	return out
}

// taintReachedLines maps varName's taint sink blocks to the source lines
// the fusion table in verdict.Build will already produce a finding for, so
// this module only fills in the lines taint enumeration left untouched.
// It re-derives the same sink-instruction-to-line mapping
// verdict.fuseSinkFindings uses (last SSTORE per sink block, resolved
// through the instruction-pointer index and the source map) rather than
// importing verdict, which already imports this package.
func taintReachedLines(ctx *Context, varName string) map[int]bool {
	lines := make(map[int]bool)
	if ctx.Taint == nil || ctx.Disasm == nil || ctx.Graph == nil || ctx.SrcMap == nil {
		return lines
	}
	sink := ctx.Taint.Sinks[varName]
	if sink == nil {
		return lines
	}

	indexOf := make(map[*disassembler.EvmInstruction]int, len(ctx.Disasm.InstructionList))
	for i, instr := range ctx.Disasm.InstructionList {
		indexOf[instr] = i
	}

	seenBlocks := make(map[int]bool)
	for _, p := range sink.Paths {
		if seenBlocks[p.Sink] {
			continue
		}
		seenBlocks[p.Sink] = true

		b := ctx.Graph.BlockAt[p.Sink]
		if b == nil {
			continue
		}
		instr := lastSStoreInBlock(b)
		if instr == nil {
			continue
		}
		idx, ok := indexOf[instr]
		if !ok {
			continue
		}
		line, _, ok := ctx.SrcMap.LineForInstruction(idx)
		if !ok {
			continue
		}
		lines[line] = true
	}
	return lines
}

// lastSStoreInBlock mirrors verdict.lastSStore: a block can push/pop the
// same slot more than once, so the last SSTORE is the one whose source-map
// entry actually corresponds to the write that lands.
func lastSStoreInBlock(b *cfg.BasicBlock) *disassembler.EvmInstruction {
	var last *disassembler.EvmInstruction
	for _, instr := range b.Instructions {
		if instr.Name() == "SSTORE" {
			last = instr
		}
	}
	return last
}

// eligible applies spec §4.8's runtime-attack-surface filter plus the
// public/external restriction this supplementary check adds: a write in a
// constructor, view/pure function, fallback/receive, or modifier body is
// not a live write path, and a private/internal write is not externally
// triggerable in the first place.
func eligible(fn *source.Function) bool {
	if fn.IsConstructor || fn.IsViewOrPure() || fn.IsFallbackOrReceive || fn.IsModifier {
		return false
	}
	return fn.Visibility == source.VisibilityPublic || fn.Visibility == source.VisibilityExternal
}

func classify(hasAccessControl, hasGuard bool) (verdict, confidence, reason string) {
	switch {
	case hasAccessControl:
		return "safe", "medium", "write is guarded by an access-control check, no tainted input reached it"
	case hasGuard:
		return "suspicious", "medium", "write is guarded by a non-access-control condition"
	default:
		return "dangerous", "low", "write in a public/external function has no guard of any kind"
	}
}
