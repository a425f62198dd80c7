package source

import "regexp"

const (
	OpRead        = "read"
	OpWrite       = "write"
	OpDeclaration = "declaration"
)

// Usage is the source-level Usage of spec §3: one occurrence of a key
// variable name on one source line.
type Usage struct {
	Line               int
	Code               string
	Operation          string // read | write | declaration
	Function           *Function // nil if the line is outside any function (e.g. a state-var declaration)
	SourceHasCondition bool
}

var declarationTypeWords = []string{"uint", "int", "address", "bool", "mapping", "string", "bytes"}

var compoundAssignOps = []string{"+=", "-=", "*=", "/=", "%=", "|=", "&=", "^=", "<<=", ">>="}

var conditionKeywords = regexp.MustCompile(`\b(require|assert|if|while)\s*\(`)

// FindUsages scans every source line for occurrences of varName and tags
// each with read/write/declaration per spec §4.4's operation rules. lines
// is 0-indexed source text; functions are the previously parsed
// Function spans used to attribute each usage to its containing function
// and to decide the source-has-condition flag from surrounding lines.
func FindUsages(lines []string, functions []*Function, varName string) []*Usage {
	nameRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(varName) + `\b`)

	usages := make([]*Usage, 0)
	for i, raw := range lines {
		lineNum := i + 1
		code := stripLineComment(raw)
		if !nameRe.MatchString(code) {
			continue
		}

		fn := functionForLine(functions, lineNum)

		u := &Usage{
			Line:     lineNum,
			Code:     trimSpace(raw),
			Function: fn,
		}

		if isDeclarationLine(code, varName, fn) {
			u.Operation = OpDeclaration
		} else {
			u.Operation = classifyOperation(code, varName)
		}

		u.SourceHasCondition = lineHasCondition(code) || nearbyLineHasCondition(lines, lineNum, fn)

		usages = append(usages, u)
	}
	return usages
}

func functionForLine(functions []*Function, line int) *Function {
	for _, fn := range functions {
		if line >= fn.StartLine && line <= fn.EndLine {
			return fn
		}
	}
	return nil
}

// isDeclarationLine reports a contract-scope declaration: a type keyword
// precedes the name and the line is not inside any function body (a
// local variable of the same name inside a function is not this key
// variable's state declaration).
func isDeclarationLine(code, varName string, fn *Function) bool {
	if fn != nil {
		return false
	}
	for _, kw := range declarationTypeWords {
		if containsWord(code, kw) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
	return re.MatchString(s)
}

var reComparisonOp = regexp.MustCompile(`(==|!=|>=|<=)`)

// classifyOperation distinguishes write from read per spec §4.4: write if
// the name appears on the left of `=` or a compound-assignment operator,
// read otherwise.
func classifyOperation(code, varName string) string {
	nameRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(varName) + `\b`)
	loc := nameRe.FindStringIndex(code)
	if loc == nil {
		return OpRead
	}
	rest := code[loc[1]:]

	trimmed := skipWhitespace(rest)
	if hasCompoundAssignPrefix(trimmed) {
		return OpWrite
	}
	// A bare `=` not part of `==`, `!=`, `>=`, `<=` immediately (modulo
	// whitespace) after the identifier is a plain assignment.
	if len(trimmed) > 0 && trimmed[0] == '=' && (len(trimmed) < 2 || trimmed[1] != '=') {
		return OpWrite
	}
	if reComparisonOp.MatchString(code) {
		return OpRead
	}
	return OpRead
}

func hasCompoundAssignPrefix(s string) bool {
	for _, op := range compoundAssignOps {
		if len(s) >= len(op) && s[:len(op)] == op {
			return true
		}
	}
	return false
}

func skipWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}

// lineHasCondition reports spec §4.4's source-has-condition flag: a
// require/assert/if/while on the same line.
func lineHasCondition(code string) bool {
	return conditionKeywords.MatchString(code)
}

// nearbyLineHasCondition extends the same flag to "surrounding" lines
// within the enclosing function per spec §4.4, looking only at lines
// preceding the usage within the same function body.
func nearbyLineHasCondition(lines []string, lineNum int, fn *Function) bool {
	if fn == nil {
		return false
	}
	for ln := fn.StartLine; ln < lineNum; ln++ {
		if ln-1 < 0 || ln-1 >= len(lines) {
			continue
		}
		if lineHasCondition(stripLineComment(lines[ln-1])) {
			return true
		}
	}
	return false
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
