// Package module adapts the teacher's analysis/module plugin framework
// (go-mythril's DetectionModule/ModuleLoader pair, originally dispatching
// symbolic-execution security checks over a GlobalState) to this detector's
// supplementary findings: checks that sit alongside the taint-engine fusion
// table rather than inside it - the sensitive-sink addendum and the
// source-supplement detection of spec §4.8.
package module

import (
	"go-acscan/cfg"
	"go-acscan/disassembler"
	"go-acscan/source"
	"go-acscan/storage"
	"go-acscan/support"
	"go-acscan/taint"
)

// Finding is one reportable location: a (key-variable, source-line) pair or
// a sensitive-sink line, carrying the verdict table's output (spec §4.8).
type Finding struct {
	Var             string
	Slot            int
	SlotKnown       bool
	Line            int
	Column          int
	Code            string
	Function        string
	Tags            []string
	HasSourceGuard  bool
	Verdict         string
	Confidence      string
	Reason          string
	DetectionSource string // "source" | "bytecode" | "both" | "taint"
	Sensitive       bool
}

// Context bundles every analysis artifact a DetectionModule needs. It owns
// nothing exclusively - spec §5's single-threaded, no-shared-mutable-state
// model means one Context lives for exactly one analysis run.
type Context struct {
	Lines     []string
	Functions []*source.Function
	Bindings  map[string]*storage.Binding
	Disasm    *disassembler.Disassembly
	Graph     *cfg.Graph
	SrcMap    *SrcMap
	Taint     *taint.Result
	Args      *support.Args

	// PathTags maps a TaintPath to its classified GuardEvidence tag set,
	// computed once by the caller (verdict.Build) and handed down so
	// modules never need to re-run the classifier.
	PathTags map[*taint.TaintPath][]string
}

// DetectionModule is one self-contained supplementary check, mirroring
// go-mythril's modules.DetectionModule interface shape (Name + Execute)
// without the Cache/Issues/PreHooks fields that only made sense against a
// live symbolic GlobalState.
type DetectionModule interface {
	Name() string
	Execute(ctx *Context) []*Finding
}
