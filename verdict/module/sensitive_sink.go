package module

import (
	"strings"

	"go-acscan/disassembler"
	"go-acscan/source"
	"go-acscan/support"
)

// sensitiveKeywords mirrors original_source/core/source_mapper.py's
// _check_sensitive_functions keyword table.
var sensitiveKeywords = []string{"selfdestruct", "suicide", "delegatecall", "callcode"}

// SensitiveSinkModule implements spec §4.8's sensitive-sink addendum with
// the dual bytecode+source detection and merge policy SPEC_FULL.md item 2
// supplements it with, grounded on _check_sensitive_functions and
// _merge_sensitive_detections.
type SensitiveSinkModule struct{}

func (m *SensitiveSinkModule) Name() string { return "SensitiveSink" }

func (m *SensitiveSinkModule) Execute(ctx *Context) []*Finding {
	byLine := make(map[int]*Finding)

	for line, f := range m.sourceSide(ctx) {
		byLine[line] = f
	}
	for line, f := range m.bytecodeSide(ctx) {
		if existing, ok := byLine[line]; ok {
			existing.DetectionSource = "both"
			continue
		}
		byLine[line] = f
	}

	out := make([]*Finding, 0, len(byLine))
	for _, f := range byLine {
		out = append(out, f)
	}
	return out
}

func (m *SensitiveSinkModule) sourceSide(ctx *Context) map[int]*Finding {
	out := make(map[int]*Finding)
	for i, raw := range ctx.Lines {
		lineNum := i + 1
		stripped := trimSpace(raw)
		if strings.HasPrefix(stripped, "//") || strings.HasPrefix(stripped, "*") || strings.HasPrefix(stripped, "/*") {
			continue
		}
		lower := strings.ToLower(raw)
		for _, kw := range sensitiveKeywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			fn := functionForLine(ctx.Functions, lineNum)
			hasAccessControl, verdict, confidence, reason := m.resolve(ctx.Lines, fn)
			out[lineNum] = &Finding{
				Line:            lineNum,
				Code:            stripped,
				Function:        functionName(fn),
				HasSourceGuard:  hasAccessControl,
				Verdict:         verdict,
				Confidence:      confidence,
				Reason:          reason,
				DetectionSource: "source",
				Sensitive:       true,
			}
			break
		}
	}
	return out
}

func (m *SensitiveSinkModule) bytecodeSide(ctx *Context) map[int]*Finding {
	out := make(map[int]*Finding)
	if ctx.Disasm == nil || ctx.Graph == nil {
		return out
	}
	indexOf := make(map[*disassembler.EvmInstruction]int, len(ctx.Disasm.InstructionList))
	for i, instr := range ctx.Disasm.InstructionList {
		indexOf[instr] = i
	}

	for _, b := range ctx.Graph.Blocks {
		for _, instr := range b.Instructions {
			if !support.IsSensitiveSink(instr.Name()) {
				continue
			}
			idx, ok := indexOf[instr]
			if !ok {
				continue
			}
			line, col, ok := ctx.SrcMap.LineForInstruction(idx)
			if !ok {
				continue
			}
			fn := functionForLine(ctx.Functions, line)
			hasAccessControl, verdict, confidence, reason := m.resolve(ctx.Lines, fn)
			code := ""
			if line >= 1 && line <= len(ctx.Lines) {
				code = trimSpace(ctx.Lines[line-1])
			}
			out[line] = &Finding{
				Line:            line,
				Column:          col,
				Code:            code,
				Function:        functionName(fn),
				HasSourceGuard:  hasAccessControl,
				Verdict:         verdict,
				Confidence:      confidence,
				Reason:          reason,
				DetectionSource: "bytecode",
				Sensitive:       true,
			}
		}
	}
	return out
}

// resolve applies spec §4.8's sensitive-sink addendum: dangerous unless the
// containing function has access control, in which case suspicious at
// medium confidence.
func (m *SensitiveSinkModule) resolve(lines []string, fn *source.Function) (hasAccessControl bool, verdict, confidence, reason string) {
	if fn != nil && source.HasAccessControl(fn, source.BodyLines(lines, fn)) {
		return true, "suspicious", "medium", "sensitive operation guarded by an access-control check"
	}
	return false, "dangerous", "low", "sensitive operation reachable without an access-control check"
}

func functionForLine(functions []*source.Function, line int) *source.Function {
	for _, fn := range functions {
		if line >= fn.StartLine && line <= fn.EndLine {
			return fn
		}
	}
	return nil
}

func functionName(fn *source.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
