package verdict

import (
	"regexp"
	"sort"

	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/evidence"
	"go-acscan/source"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
	"go-acscan/verdict/module"

	log "github.com/sirupsen/logrus"
)

// Finding is the report-ready (key-variable or sensitive-sink, source-line)
// verdict of spec §4.8/§4.9, re-exported from the module package so callers
// outside verdict never need to import verdict/module directly.
type Finding = module.Finding

var reBodyCondition = regexp.MustCompile(`\b(require|assert|if)\s*\(`)

// Build runs C8 end to end: source-map every taint sink to a line, apply
// the fusion table, then run the sensitive-sink and source-supplement
// modules, returning every finding sorted ascending by line then variable
// name per spec §4.9.
func Build(
	lines []string,
	functions []*source.Function,
	bindings map[string]*storage.Binding,
	disasm *disassembler.Disassembly,
	graph *cfg.Graph,
	srcmapRuntime string,
	taintResult *taint.Result,
	args *support.Args,
) []*Finding {
	log.Info("Entering verdict.Build")
	defer log.Info("Exiting verdict.Build")

	srcMap := module.ParseSrcMap(srcmapRuntime, lines)

	pathTags := make(map[*taint.TaintPath][]string)
	findings := make([]*Finding, 0)

	for varName, binding := range bindings {
		if binding.Ambiguous {
			continue
		}
		sink := taintResult.Sinks[varName]
		if sink == nil {
			continue
		}
		findings = append(findings, fuseSinkFindings(lines, functions, binding, graph, disasm, srcMap, sink, pathTags)...)
	}

	ctx := &module.Context{
		Lines:     lines,
		Functions: functions,
		Bindings:  bindings,
		Disasm:    disasm,
		Graph:     graph,
		SrcMap:    srcMap,
		Taint:     taintResult,
		Args:      args,
		PathTags:  pathTags,
	}
	findings = append(findings, module.NewModuleLoader().Run(ctx)...)

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Var < findings[j].Var
	})
	return findings
}

// fuseSinkFindings maps every distinct sink block of one variable's taint
// paths to a source line and applies the fusion table from spec §4.8,
// dropping usages the filter rule excludes (constructor, view/pure,
// fallback/receive, modifier, declaration).
func fuseSinkFindings(
	lines []string,
	functions []*source.Function,
	binding *storage.Binding,
	graph *cfg.Graph,
	disasm *disassembler.Disassembly,
	srcMap *module.SrcMap,
	sink *taint.SinkResult,
	pathTags map[*taint.TaintPath][]string,
) []*Finding {
	byBlock := make(map[int][]*taint.TaintPath)
	for _, p := range sink.Paths {
		byBlock[p.Sink] = append(byBlock[p.Sink], p)
	}

	indexOf := instructionIndex(disasm)
	usagesByLine := usageIndex(source.FindUsages(lines, functions, binding.Name))

	out := make([]*Finding, 0)
	for blockStart, paths := range byBlock {
		b := graph.BlockAt[blockStart]
		if b == nil {
			continue
		}
		instr := lastSStore(b)
		if instr == nil {
			continue
		}
		idx, ok := indexOf[instr]
		if !ok {
			continue
		}
		line, col, ok := srcMap.LineForInstruction(idx)
		if !ok {
			continue
		}

		usage := usagesByLine[line]
		if usage == nil || usage.Operation != source.OpWrite {
			continue
		}
		fn := usage.Function
		if fn != nil && (fn.IsConstructor || fn.IsViewOrPure() || fn.IsFallbackOrReceive || fn.IsModifier) {
			continue
		}

		tags := unionTags(graph, paths, pathTags)
		hasBytecodeGuard := len(tags) > 0
		hasAccessControlTag := containsTag(tags, evidence.TagAccessControl)
		hasSourceGuard := usage.SourceHasCondition ||
			(fn != nil && len(fn.Modifiers) > 0) ||
			(fn != nil && bodyHasCondition(lines, fn))

		verdict, confidence := ResolveVerdict(hasBytecodeGuard, hasSourceGuard, hasAccessControlTag)

		out = append(out, &Finding{
			Var:             binding.Name,
			Slot:            binding.Slot,
			SlotKnown:       true,
			Line:            line,
			Column:          col,
			Code:            usage.Code,
			Function:        functionNameOf(fn),
			Tags:            tags,
			HasSourceGuard:  hasSourceGuard,
			Verdict:         verdict,
			Confidence:      confidence,
			Reason:          reason(hasBytecodeGuard, hasSourceGuard, hasAccessControlTag),
			DetectionSource: "taint",
		})
	}
	return out
}

// unionTags classifies every path once, caching the result per TaintPath
// pointer so the sensitive-sink/source-supplement modules downstream (which
// receive the same cache through Context.PathTags) never re-walk a path's
// instructions, and returns the union of every path's tag set.
func unionTags(g *cfg.Graph, paths []*taint.TaintPath, cache map[*taint.TaintPath][]string) []string {
	set := make(map[string]bool)
	for _, p := range paths {
		tags, ok := cache[p]
		if !ok {
			tags = evidence.Classify(g, p).SortedTags()
			cache[p] = tags
		}
		for _, t := range tags {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func reason(hasBytecodeGuard, hasSourceGuard, hasAccessControlTag bool) string {
	switch {
	case hasBytecodeGuard && hasSourceGuard && hasAccessControlTag:
		return "write is reached through a caller-identity comparison both in bytecode and source"
	case hasBytecodeGuard || hasSourceGuard:
		return "write is guarded, but not by a verified access-control check"
	default:
		return "write has no guard in bytecode or source"
	}
}

func bodyHasCondition(lines []string, fn *source.Function) bool {
	for _, raw := range source.BodyLines(lines, fn) {
		if reBodyCondition.MatchString(raw) {
			return true
		}
	}
	return false
}

func functionNameOf(fn *source.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}

func instructionIndex(d *disassembler.Disassembly) map[*disassembler.EvmInstruction]int {
	out := make(map[*disassembler.EvmInstruction]int, len(d.InstructionList))
	for i, instr := range d.InstructionList {
		out[instr] = i
	}
	return out
}

func usageIndex(usages []*source.Usage) map[int]*source.Usage {
	out := make(map[int]*source.Usage, len(usages))
	for _, u := range usages {
		if u.Operation == source.OpWrite {
			out[u.Line] = u
		}
	}
	return out
}

func lastSStore(b *cfg.BasicBlock) *disassembler.EvmInstruction {
	var last *disassembler.EvmInstruction
	for _, instr := range b.Instructions {
		if instr.Name() == "SSTORE" {
			last = instr
		}
	}
	return last
}
