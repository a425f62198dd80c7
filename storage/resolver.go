// Package storage resolves key state-variable names to their declaration
// slot index, per spec §4.5: declaration-order slot numbering within each
// contract block, with scalar/mapping/array sizing at the precision spec
// requires (one variable per 32-byte slot).
package storage

import (
	"regexp"
	"strings"
)

// Binding is the KeyVariableBinding of spec §3.
type Binding struct {
	Name      string
	Slot      int
	Type      string // scalar | mapping | array | struct
	Ambiguous bool
}

const (
	TypeScalar  = "scalar"
	TypeMapping = "mapping"
	TypeArray   = "array"
	TypeStruct  = "struct"
)

var (
	reContractBlock = regexp.MustCompile(`\b(contract|abstract\s+contract|library|interface)\s+(\w+)(\s+is\s+([^{]+))?`)
	reMapping       = regexp.MustCompile(`^\s*mapping\s*\(`)
	reFixedArray    = regexp.MustCompile(`\[\s*(\d+)\s*\]`)
	reDynArray      = regexp.MustCompile(`\[\s*\]`)
	reConstantWord  = regexp.MustCompile(`\b(constant|immutable)\b`)
	reStateVarDecl  = regexp.MustCompile(`^\s*(mapping\s*\([^)]*\)|[\w\[\]]+)\s*(\[[^\]]*\])?\s+(public|private|internal|external)?\s*(constant|immutable)?\s*(public|private|internal|external)?\s*(constant|immutable)?\s*(\w+)\s*[;=]`)
)

type contractBlock struct {
	name      string
	bases     []string
	startLine int
	endLine   int
}

// Resolve computes the storage slot for each requested key variable name
// against the named contract's declaration block and any base contracts
// declared earlier in the same file (spec §4.5's inheritance handling,
// resolved per the cross-contract Open Question decision in DESIGN.md:
// same-file only, preferring the most-derived contract on ambiguity).
func Resolve(lines []string, contractName string, keyVars []string) map[string]*Binding {
	blocks := findContractBlocks(lines)
	primary := selectPrimary(blocks, contractName)

	// Order: bases first (least-derived), then the primary contract, so
	// a name declared in both ends up bound to the primary's slot - the
	// last assignment wins, matching "prefer the most-derived contract".
	order := ordered(blocks, primary)

	declOrder := make(map[string]int) // name -> slot, in scan order
	declaredIn := make(map[string]string)
	typeOf := make(map[string]string)
	nextSlot := 0

	for _, blk := range order {
		for ln := blk.startLine; ln <= blk.endLine && ln <= len(lines); ln++ {
			if ln < 1 {
				continue
			}
			raw := lines[ln-1]
			name, typ, width, ok := parseStateVarDecl(raw)
			if !ok {
				continue
			}
			declOrder[name] = nextSlot
			declaredIn[name] = blk.name
			typeOf[name] = typ
			nextSlot += width
		}
	}

	out := make(map[string]*Binding, len(keyVars))
	for _, kv := range keyVars {
		slot, ok := declOrder[kv]
		if !ok {
			out[kv] = &Binding{Name: kv, Ambiguous: true}
			continue
		}
		out[kv] = &Binding{Name: kv, Slot: slot, Type: typeOf[kv]}
	}
	return out
}

func findContractBlocks(lines []string) []*contractBlock {
	blocks := make([]*contractBlock, 0)
	var cur *contractBlock
	depth := 0
	seenOpen := false
	for i, raw := range lines {
		lineNum := i + 1
		if m := reContractBlock.FindStringSubmatch(raw); m != nil && cur == nil {
			bases := make([]string, 0)
			if m[4] != "" {
				for _, b := range splitCommaList(m[4]) {
					bases = append(bases, b)
				}
			}
			cur = &contractBlock{name: m[2], bases: bases, startLine: lineNum}
			depth = 0
			seenOpen = false
		}
		if cur == nil {
			continue
		}
		depth += countBraces(raw)
		if containsOpeningBrace(raw) {
			seenOpen = true
		}
		if seenOpen && depth <= 0 {
			cur.endLine = lineNum
			blocks = append(blocks, cur)
			cur = nil
		}
	}
	if cur != nil {
		cur.endLine = len(lines)
		blocks = append(blocks, cur)
	}
	return blocks
}

func countBraces(s string) int {
	n := 0
	for _, c := range s {
		if c == '{' {
			n++
		} else if c == '}' {
			n--
		}
	}
	return n
}

func containsOpeningBrace(s string) bool {
	for _, c := range s {
		if c == '{' {
			return true
		}
	}
	return false
}

func splitCommaList(s string) []string {
	out := make([]string, 0)
	cur := ""
	for _, c := range s {
		if c == ',' {
			out = append(out, trimSpaceStr(cur))
			cur = ""
			continue
		}
		cur += string(c)
	}
	if trimSpaceStr(cur) != "" {
		out = append(out, trimSpaceStr(cur))
	}
	return out
}

func trimSpaceStr(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// selectPrimary picks the contract the user is analysing: an exact name
// match if given, else the last contract block in the file (solc's
// convention for "the contract being compiled" when a file declares
// several).
func selectPrimary(blocks []*contractBlock, contractName string) *contractBlock {
	if contractName != "" {
		for _, b := range blocks {
			if b.name == contractName {
				return b
			}
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return blocks[len(blocks)-1]
}

// ordered returns base contracts (declared earlier in the file, named in
// primary.bases) followed by primary itself, so scanning in this order and
// letting later declarations overwrite earlier ones implements "prefer the
// most-derived contract" on slot collision.
func ordered(blocks []*contractBlock, primary *contractBlock) []*contractBlock {
	if primary == nil {
		return nil
	}
	out := make([]*contractBlock, 0, len(primary.bases)+1)
	for _, base := range primary.bases {
		for _, b := range blocks {
			if b.name == base {
				out = append(out, b)
			}
		}
	}
	out = append(out, primary)
	return out
}

// parseStateVarDecl recognises a state-variable declaration line and
// returns its name, type tag, and slot width (spec §4.5: scalars advance
// the next-free slot by one; mappings/dynamic arrays occupy one base slot;
// fixed arrays of length N occupy N consecutive slots; constants and
// immutables occupy no slot).
func parseStateVarDecl(raw string) (name, typ string, width int, ok bool) {
	code := stripComment(raw)
	if containsAny(code, []string{"function", "modifier", "event", "constructor", "contract ", "struct "}) {
		return "", "", 0, false
	}
	if reConstantWord.MatchString(code) {
		return "", "", 0, false
	}

	if reMapping.MatchString(code) {
		n := lastIdentifierBeforeSemicolon(code)
		if n == "" {
			return "", "", 0, false
		}
		return n, TypeMapping, 1, true
	}

	if m := reFixedArray.FindStringSubmatch(code); m != nil {
		n := lastIdentifierBeforeSemicolon(code)
		if n == "" {
			return "", "", 0, false
		}
		length := atoiSafe(m[1])
		if length <= 0 {
			length = 1
		}
		return n, TypeArray, length, true
	}

	if reDynArray.MatchString(code) {
		n := lastIdentifierBeforeSemicolon(code)
		if n == "" {
			return "", "", 0, false
		}
		return n, TypeArray, 1, true
	}

	// Plain scalar declaration: `<type> [visibility]* name;` or `= init;`
	n := scalarDeclName(code)
	if n == "" {
		return "", "", 0, false
	}
	return n, TypeScalar, 1, true
}

var reScalarDecl = regexp.MustCompile(`^\s*[A-Za-z_][\w]*(\.\w+)?\s+(public\s+|private\s+|internal\s+|external\s+)*(\w+)\s*[;=]`)

func scalarDeclName(code string) string {
	m := reScalarDecl.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	return m[3]
}

// lastIdentifierBeforeSemicolon extracts the declared variable name that
// follows a type's closing bracket (mapping's `)` or an array's `]`):
// everything after the last such bracket, up to the terminating `;`/`=`,
// is the (possibly visibility-qualified) declarator tail.
func lastIdentifierBeforeSemicolon(code string) string {
	idx := strings.LastIndexAny(code, ")]")
	tail := code
	if idx >= 0 {
		tail = code[idx+1:]
	}
	if j := strings.IndexAny(tail, ";="); j >= 0 {
		tail = tail[:j]
	}
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if indexOfStr(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOfStr(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func stripComment(s string) string {
	if idx := indexOfStr(s, "//"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
