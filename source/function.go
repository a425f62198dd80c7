// Package source implements the line/bracket-oriented Solidity scanner:
// function/modifier extraction, visibility and mutability classification,
// and per-line usage tagging for nominated key variables. No grammar
// library is used — the pack retrieved for this project carries none for
// Solidity, and a line-oriented scan is explicitly sanctioned at this
// fidelity level.
package source

import "regexp"

const (
	VisibilityPublic   = "public"
	VisibilityExternal = "external"
	VisibilityInternal = "internal"
	VisibilityPrivate  = "private"

	MutabilityDefault  = "default"
	MutabilityView     = "view"
	MutabilityPure     = "pure"
	MutabilityConstant = "constant"
	MutabilityPayable  = "payable"
)

// Function is the source-level Function of spec §3.
type Function struct {
	Name                string
	Contract            string
	StartLine           int // 1-indexed, inclusive
	EndLine             int // 1-indexed, inclusive
	Visibility          string
	Mutability          string
	Modifiers           []string
	IsConstructor       bool
	IsFallbackOrReceive bool
	IsModifier          bool
}

// IsViewOrPure reports whether the function is view, pure or constant, so
// that writes inside it do not touch contract state (spec §4.8's
// constructor/view/pure/fallback/modifier filter).
func (f *Function) IsViewOrPure() bool {
	return f.Mutability == MutabilityView || f.Mutability == MutabilityPure || f.Mutability == MutabilityConstant
}

var (
	reModifierDecl    = regexp.MustCompile(`\bmodifier\s+(\w+)`)
	reConstructorDecl = regexp.MustCompile(`\bconstructor\s*\(`)
	reFallbackAnon    = regexp.MustCompile(`\bfunction\s*\(\s*\)`)
	reFallbackNamed   = regexp.MustCompile(`\b(fallback|receive)\s*\(\s*\)`)
	reFunctionDecl    = regexp.MustCompile(`\bfunction\s+(\w+)\s*\(`)
	reContractDecl    = regexp.MustCompile(`\bcontract\s+(\w+)`)
)

var visibilityWords = map[string]bool{
	VisibilityPublic: true, VisibilityExternal: true, VisibilityInternal: true, VisibilityPrivate: true,
}

var mutabilityWords = map[string]string{
	"view": MutabilityView, "pure": MutabilityPure, "constant": MutabilityConstant, "payable": MutabilityPayable,
}

// ContractNames extracts every `contract Foo` / `abstract contract Foo`
// declaration in file order (spec §4.4's "list of declared contract names,
// for legacy constructor detection").
func ContractNames(lines []string) []string {
	names := make([]string, 0)
	for _, line := range lines {
		code := stripLineComment(line)
		if m := reContractDecl.FindStringSubmatch(code); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// ParseFunctions scans raw source lines and extracts every function and
// modifier definition per spec §4.4. lines is 0-indexed; line numbers in
// the returned Functions are 1-indexed.
func ParseFunctions(lines []string) []*Function {
	contractNames := ContractNames(lines)

	type start struct {
		line       int // 1-indexed
		name       string
		constructor bool
		modifier    bool
		fallback    bool
	}
	starts := make([]start, 0)

	for i, raw := range lines {
		lineNum := i + 1
		code := stripLineComment(raw)

		if m := reModifierDecl.FindStringSubmatch(code); m != nil {
			starts = append(starts, start{line: lineNum, name: m[1], modifier: true})
			continue
		}
		if reConstructorDecl.MatchString(code) {
			starts = append(starts, start{line: lineNum, name: "constructor", constructor: true})
			continue
		}
		if matchedOld := matchOldConstructor(code, contractNames); matchedOld {
			starts = append(starts, start{line: lineNum, name: "constructor", constructor: true})
			continue
		}
		if reFallbackAnon.MatchString(code) {
			starts = append(starts, start{line: lineNum, name: "fallback", fallback: true})
			continue
		}
		if m := reFallbackNamed.FindStringSubmatch(code); m != nil {
			starts = append(starts, start{line: lineNum, name: m[1], fallback: true})
			continue
		}
		if m := reFunctionDecl.FindStringSubmatch(code); m != nil {
			starts = append(starts, start{line: lineNum, name: m[1]})
		}
	}

	functions := make([]*Function, 0, len(starts))
	for i, s := range starts {
		endLine := len(lines)
		if i+1 < len(starts) {
			endLine = starts[i+1].line - 1
		}
		actualEnd := findFunctionEnd(lines, s.line, endLine)

		visibility, mutability, modifiers := parseSignature(lines, s.line, actualEnd)

		fn := &Function{
			Name:                s.name,
			StartLine:           s.line,
			EndLine:             actualEnd,
			Visibility:          visibility,
			Mutability:          mutability,
			Modifiers:           modifiers,
			IsConstructor:       s.constructor,
			IsFallbackOrReceive: s.fallback,
			IsModifier:          s.modifier,
		}
		functions = append(functions, fn)
	}
	return functions
}

func matchOldConstructor(code string, contractNames []string) bool {
	for _, name := range contractNames {
		if m := regexp.MustCompile(`\bfunction\s+` + regexp.QuoteMeta(name) + `\s*\(`).FindString(code); m != "" {
			return true
		}
	}
	return false
}

// findFunctionEnd locates a function's closing brace by counting braces
// from its declaration line, matching spec §4.4's "nested braces are
// counted to find a function's end; single-line functions are supported".
func findFunctionEnd(lines []string, startLine, fallbackEnd int) int {
	braceCount := 0
	openedBrace := false
	for ln := startLine; ln <= fallbackEnd && ln <= len(lines); ln++ {
		line := lines[ln-1]
		braceCount += countRune(line, '{') - countRune(line, '}')
		if countRune(line, '{') > 0 {
			openedBrace = true
		}
		if openedBrace && braceCount <= 0 && countRune(line, '}') > 0 {
			return ln
		}
	}
	return fallbackEnd
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}

// parseSignature scans from the declaration line to the opening brace (or
// end of function for a bodiless interface signature) to pull visibility,
// mutability, and the modifier-name list: tokens between the closing
// parameter paren and the opening brace that are not visibility/mutability/
// return keywords (spec §4.4).
func parseSignature(lines []string, startLine, endLine int) (visibility, mutability string, modifiers []string) {
	visibility = VisibilityPublic // Solidity's historical default for unannotated functions
	mutability = MutabilityDefault

	sig := ""
	for ln := startLine; ln <= endLine && ln <= len(lines); ln++ {
		sig += lines[ln-1] + " "
		if containsRune(lines[ln-1], '{') {
			break
		}
	}

	afterParen := afterClosingParen(sig)
	tokens := tokenize(afterParen)

	for _, tok := range tokens {
		if tok == "{" {
			break
		}
		if visibilityWords[tok] {
			visibility = tok
			continue
		}
		if m, ok := mutabilityWords[tok]; ok {
			mutability = m
			continue
		}
		switch tok {
		case "returns", "override", "virtual":
			continue
		}
		if tok == "" {
			continue
		}
		// A bare identifier followed by '(' or standing alone is a
		// modifier invocation; strip any call arguments, keep the name.
		modifiers = append(modifiers, tok)
	}
	return visibility, mutability, modifiers
}

func afterClosingParen(sig string) string {
	depth := 0
	for i, c := range sig {
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				return sig[i+1:]
			}
		}
	}
	return ""
}

var reIdent = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// tokenize pulls bare identifiers out of a signature tail, dropping any
// parenthesised call arguments so a modifier invocation like
// `checkAdmin(x)` is recorded as just `checkAdmin` (spec §4.4 edge case).
func tokenize(s string) []string {
	out := make([]string, 0)
	for _, m := range splitPreservingParens(s) {
		if m.depth > 0 {
			continue
		}
		if m.text == "{" {
			out = append(out, "{")
			continue
		}
		if reIdent.MatchString(m.text) {
			out = append(out, m.text)
		}
	}
	return out
}

type parenToken struct {
	text  string
	depth int
}

// splitPreservingParens tokenizes on whitespace/punctuation while tracking
// paren nesting depth so call arguments can be skipped.
func splitPreservingParens(s string) []parenToken {
	out := make([]parenToken, 0)
	depth := 0
	cur := make([]rune, 0)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, parenToken{text: string(cur), depth: depth})
			cur = cur[:0]
		}
	}
	for _, c := range s {
		switch c {
		case '(':
			flush()
			depth++
		case ')':
			flush()
			if depth > 0 {
				depth--
			}
		case '{':
			flush()
			out = append(out, parenToken{text: "{", depth: depth})
		case ' ', '\t', '\n', '\r', ',', ';':
			flush()
		default:
			cur = append(cur, c)
		}
	}
	flush()
	return out
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func stripLineComment(line string) string {
	if idx := indexOf(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
