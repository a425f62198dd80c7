package main

import "testing"

func TestAnalyzeExec_MissingRequiredFlagsExitsInputMalformed(t *testing.T) {
	contractPath, keyVars, solcVersion, outputDir = "", nil, "", "./output"
	exitCode = -1

	analyzeExec()

	if exitCode != exitInputMalformed {
		t.Fatalf("expected exitInputMalformed, got %d", exitCode)
	}
}

func TestAnalyzeExec_MissingKeyVarsExitsInputMalformed(t *testing.T) {
	contractPath, keyVars, solcVersion, outputDir = "Owned.sol", nil, "0.8.19", "./output"
	exitCode = -1

	analyzeExec()

	if exitCode != exitInputMalformed {
		t.Fatalf("expected exitInputMalformed when --key-vars is empty, got %d", exitCode)
	}
}

func TestAnalyzeExec_DuplicateKeyVarExitsInputMalformed(t *testing.T) {
	contractPath, keyVars, solcVersion, outputDir = "Owned.sol", []string{"owner", "limit", "owner"}, "0.8.19", "./output"
	exitCode = -1

	analyzeExec()

	if exitCode != exitInputMalformed {
		t.Fatalf("expected exitInputMalformed for a duplicate key variable, got %d", exitCode)
	}
}

func TestFirstDuplicate_FindsRecurrence(t *testing.T) {
	if got := firstDuplicate([]string{"owner", "limit", "owner"}); got != "owner" {
		t.Fatalf("expected owner, got %q", got)
	}
	if got := firstDuplicate([]string{"owner", "limit"}); got != "" {
		t.Fatalf("expected no duplicate, got %q", got)
	}
}
