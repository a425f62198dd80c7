package source

import "regexp"

var reAccessControlModifierName = regexp.MustCompile(`(?i)^(only|is|require|restricted|auth)`)

var reRequireCallerEqOwner = regexp.MustCompile(`require\s*\(\s*msg\.sender\s*==\s*\w+`)
var reRequireOwnerEqCaller = regexp.MustCompile(`require\s*\(\s*\w+\s*==\s*msg\.sender`)
var reRequireOriginEqOwner = regexp.MustCompile(`require\s*\(\s*tx\.origin\s*==\s*\w+`)
var reRequireEqOwner = regexp.MustCompile(`require\s*\(\s*[\w.]+\s*==\s*owner\b`)

// HasAccessControl implements spec §4.4's function-level guard heuristic:
// a modifier whose name matches /^(only|is|require|restricted|auth)/i, OR
// a require(msg.sender == ...) / require(... == msg.sender) /
// require(... == owner) pattern (or tx.origin == ...) in the function body.
func HasAccessControl(fn *Function, bodyLines []string) bool {
	if fn == nil {
		return false
	}
	for _, m := range fn.Modifiers {
		if reAccessControlModifierName.MatchString(m) {
			return true
		}
	}
	for _, raw := range bodyLines {
		code := stripLineComment(raw)
		if reRequireCallerEqOwner.MatchString(code) || reRequireOwnerEqCaller.MatchString(code) || reRequireOriginEqOwner.MatchString(code) || reRequireEqOwner.MatchString(code) {
			return true
		}
	}
	return false
}

// BodyLines returns the slice of fn's source lines (inclusive of its
// declaration line), the span HasAccessControl and the sensitive-sink scan
// inspect.
func BodyLines(lines []string, fn *Function) []string {
	if fn == nil {
		return nil
	}
	start := fn.StartLine - 1
	end := fn.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return nil
	}
	return lines[start:end]
}
