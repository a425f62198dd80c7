package module

import "testing"

func TestOffsetToLineCol_ScansCumulativeLineLengths(t *testing.T) {
	lines := []string{"abcde", "fghij"}

	if line, col := offsetToLineCol(lines, 0); line != 1 || col != 0 {
		t.Fatalf("offset 0: got line=%d col=%d", line, col)
	}
	if line, col := offsetToLineCol(lines, 7); line != 2 || col != 1 {
		t.Fatalf("offset 7: got line=%d col=%d", line, col)
	}
}

func TestParseSrcMap_CarriesForwardOmittedFields(t *testing.T) {
	lines := []string{"abcde", "fghij"}
	sm := ParseSrcMap("5:2:0:-;:3:1:i", lines)

	if len(sm.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sm.Entries))
	}
	second := sm.Entries[1]
	if second.Offset != 5 || second.Length != 3 || second.FileIndex != 1 || second.JumpType != "i" {
		t.Fatalf("expected offset carried forward from the first entry, got %+v", second)
	}
}

func TestLineForInstruction_ResolvesByPositionalIndex(t *testing.T) {
	lines := []string{"abcde", "fghij"}
	sm := ParseSrcMap("0:1:0:-;7:1:0:-", lines)

	line, col, ok := sm.LineForInstruction(0)
	if !ok || line != 1 || col != 0 {
		t.Fatalf("instruction 0: got line=%d col=%d ok=%v", line, col, ok)
	}
	line, col, ok = sm.LineForInstruction(1)
	if !ok || line != 2 || col != 1 {
		t.Fatalf("instruction 1: got line=%d col=%d ok=%v", line, col, ok)
	}
	if _, _, ok := sm.LineForInstruction(2); ok {
		t.Fatalf("expected instruction 2 to be out of range")
	}
}

func TestParseSrcMap_EmptyStringYieldsNoEntries(t *testing.T) {
	sm := ParseSrcMap("", []string{"abcde"})
	if len(sm.Entries) != 0 {
		t.Fatalf("expected no entries for an empty srcmap, got %v", sm.Entries)
	}
}
