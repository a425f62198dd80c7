package compiler

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSupportsOverwrite_MatchesVersionBoundary(t *testing.T) {
	cases := []struct {
		major, minor, patch int
		want                bool
	}{
		{0, 4, 10, false},
		{0, 4, 11, true},
		{0, 4, 12, true},
		{0, 5, 0, true},
		{1, 0, 0, true},
		{0, 3, 99, false},
	}
	for _, c := range cases {
		if got := SupportsOverwrite(c.major, c.minor, c.patch); got != c.want {
			t.Errorf("SupportsOverwrite(%d,%d,%d) = %v, want %v", c.major, c.minor, c.patch, got, c.want)
		}
	}
}

func TestNormalizeHex_StripsPrefixAndLowercases(t *testing.T) {
	got := normalizeHex("0X60AA")
	if got != "60aa" {
		t.Fatalf("expected 60aa, got %q", got)
	}
}

func TestNormalizeHex_EmptyStringStaysEmpty(t *testing.T) {
	if got := normalizeHex(""); got != "" {
		t.Fatalf("expected empty string to stay empty, got %q", got)
	}
}

func TestContractNamesIn_SkipsInterfaceDeclarations(t *testing.T) {
	lines := []string{
		"pragma solidity ^0.8.0;",
		"interface IOwned {",
		"}",
		"contract Owned {",
		"    address owner;",
		"}",
	}
	names := ContractNamesIn(lines)
	if len(names) != 1 || names[0] != "Owned" {
		t.Fatalf("expected only Owned, got %v", names)
	}
}

func TestSelectContract_PrefersEntryWithRuntimeBytecode(t *testing.T) {
	cj := combinedJSON{Contracts: map[string]struct {
		Bin           string `json:"bin"`
		BinRuntime    string `json:"bin-runtime"`
		Srcmap        string `json:"srcmap"`
		SrcmapRuntime string `json:"srcmap-runtime"`
	}{
		"Owned.sol:IOwned": {Bin: "", BinRuntime: "", Srcmap: "", SrcmapRuntime: ""},
		"Owned.sol:Owned":  {Bin: "60aa", BinRuntime: "60bb", Srcmap: "0:1:0:-", SrcmapRuntime: "0:1:0:-"},
	}}

	name, entry, ok := selectContract(cj, "Owned.sol")
	if !ok || name != "Owned" || entry.BinRuntime != "60bb" {
		t.Fatalf("expected Owned with runtime bytecode selected, got name=%q entry=%+v ok=%v", name, entry, ok)
	}
}

func TestSelectContract_FallsBackWhenNoneHaveRuntimeBytecode(t *testing.T) {
	cj := combinedJSON{Contracts: map[string]struct {
		Bin           string `json:"bin"`
		BinRuntime    string `json:"bin-runtime"`
		Srcmap        string `json:"srcmap"`
		SrcmapRuntime string `json:"srcmap-runtime"`
	}{
		"IOwned.sol:IOwned": {},
	}}

	name, _, ok := selectContract(cj, "IOwned.sol")
	if !ok || name != "IOwned" {
		t.Fatalf("expected a fallback selection of IOwned, got name=%q ok=%v", name, ok)
	}
}

func TestSelectContract_NoMatchingKeyReturnsNotOK(t *testing.T) {
	cj := combinedJSON{Contracts: map[string]struct {
		Bin           string `json:"bin"`
		BinRuntime    string `json:"bin-runtime"`
		Srcmap        string `json:"srcmap"`
		SrcmapRuntime string `json:"srcmap-runtime"`
	}{
		"Other.sol:Other": {BinRuntime: "60bb"},
	}}

	_, _, ok := selectContract(cj, "Owned.sol")
	if ok {
		t.Fatalf("expected no match for a contract path absent from combined.json")
	}
}

func TestProbeVersion_ParsesVersionFromFakeSolc(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake solc shim is a POSIX shell script")
	}
	dir := t.TempDir()
	fake := filepath.Join(dir, "solc")
	script := "#!/bin/sh\necho 'solc, the solidity compiler'\necho 'Version: 0.8.19+commit.7dd6d404.Linux.g++'\n"
	if err := os.WriteFile(fake, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake solc: %v", err)
	}

	major, minor, patch, ok := ProbeVersion(fake)
	if !ok || major != 0 || minor != 8 || patch != 19 {
		t.Fatalf("expected 0.8.19, got major=%d minor=%d patch=%d ok=%v", major, minor, patch, ok)
	}
}

func TestProbeVersion_MissingBinaryIsNotOK(t *testing.T) {
	_, _, _, ok := ProbeVersion(filepath.Join(t.TempDir(), "no-such-solc"))
	if ok {
		t.Fatalf("expected ok=false for a nonexistent solc path")
	}
}
