// Package compiler drives solc the way original_source/core/compiler.py's
// SolcManager/ContractCompiler do: probe the installed version, decide
// whether --overwrite is safe to pass, invoke --combined-json once to get
// bytecode plus source maps in a single pass, then pick the contract the
// caller asked for out of the combined JSON.
package compiler

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-acscan/support"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Result is one contract's compiled artifacts, the Go analogue of
// ContractCompiler's bytecode/runtime_bytecode/srcmap/srcmap_runtime
// attributes.
type Result struct {
	ContractName      string
	Bytecode          string
	RuntimeBytecode   string
	SrcMap            string
	SrcMapRuntime     string
	CompilationFailed bool
	FailureReason     string
}

// combinedJSON mirrors solc's --combined-json output shape narrowly, only
// the fields this detector consumes.
type combinedJSON struct {
	Contracts map[string]struct {
		Bin           string `json:"bin"`
		BinRuntime    string `json:"bin-runtime"`
		Srcmap        string `json:"srcmap"`
		SrcmapRuntime string `json:"srcmap-runtime"`
	} `json:"contracts"`
}

var reVersion = regexp.MustCompile(`Version:\s*(\d+)\.(\d+)\.(\d+)`)
var reContractDecl = regexp.MustCompile(`\bcontract\s+(\w+)`)

// overwriteSince is the (major, minor, patch) solc first shipped
// --overwrite in, per original_source/core/compiler.py's _supports_overwrite.
var overwriteSince = [3]int{0, 4, 11}

// ProbeVersion runs `solc --version` and parses its "Version: X.Y.Z" line.
// A probe failure (solc missing, unparsable output) is not fatal here; the
// caller degrades to the conservative no-overwrite path.
func ProbeVersion(solcPath string) (major, minor, patch int, ok bool) {
	cmd := exec.Command(solcPath, "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, 0, false
	}
	m := reVersion.FindStringSubmatch(string(out))
	if m == nil {
		return 0, 0, 0, false
	}
	major, _ = strconv.Atoi(m[1])
	minor, _ = strconv.Atoi(m[2])
	patch, _ = strconv.Atoi(m[3])
	return major, minor, patch, true
}

// SupportsOverwrite implements the version comparison spec §6 requires:
// the --overwrite flag is safe to pass from 0.4.11 onward.
func SupportsOverwrite(major, minor, patch int) bool {
	since := overwriteSince
	if major != since[0] {
		return major > since[0]
	}
	if minor != since[1] {
		return minor > since[1]
	}
	return patch >= since[2]
}

// Compile runs solc once with --combined-json and returns the requested
// contract's artifacts. Per spec §7's Compile-failed taxonomy entry, a
// nonzero exit or missing runtime bytecode never returns a Go error from
// this function for a contract that simply failed to compile - it returns
// a Result with CompilationFailed set, matching the "core emits an empty
// analysis with an explicit compilation_failed marker" requirement. A
// genuine Go error is reserved for conditions the caller cannot recover
// from at all (solc not found, timeout, unparsable combined-json output).
func Compile(args *support.Args) (*Result, error) {
	log.Info("Entering compiler.Compile")
	defer log.Info("Exiting compiler.Compile")

	solcPath := "solc"
	cmdArgs := []string{
		"--combined-json", "bin,bin-runtime,srcmap,srcmap-runtime",
	}
	if major, minor, patch, ok := ProbeVersion(solcPath); ok && SupportsOverwrite(major, minor, patch) {
		cmdArgs = append(cmdArgs, "--overwrite")
	}
	cmdArgs = append(cmdArgs, args.ContractPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, solcPath, cmdArgs...)
	out, runErr := cmd.Output()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.Errorf("solc timed out compiling %s", args.ContractPath)
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); isExit {
			return &Result{CompilationFailed: true, FailureReason: runErr.Error()}, nil
		}
		return nil, errors.Wrapf(runErr, "invoke solc for %s", args.ContractPath)
	}

	var cj combinedJSON
	if err := json.Unmarshal(out, &cj); err != nil {
		return nil, errors.Wrap(err, "parse solc combined-json output")
	}

	name, entry, ok := selectContract(cj, args.ContractPath)
	if !ok {
		return &Result{CompilationFailed: true, FailureReason: "no contract produced runtime bytecode"}, nil
	}

	return &Result{
		ContractName:    name,
		Bytecode:        normalizeHex(entry.Bin),
		RuntimeBytecode: normalizeHex(entry.BinRuntime),
		SrcMap:          entry.Srcmap,
		SrcMapRuntime:   entry.SrcmapRuntime,
	}, nil
}

// selectContract finds the contract in combined.json's path:Name-keyed map
// belonging to contractPath, preferring one with non-empty runtime
// bytecode (an interface or abstract contract in the same file has none),
// mirroring _find_valid_contract's scan order.
func selectContract(cj combinedJSON, contractPath string) (string, combinedJSONEntry, bool) {
	base := filepath.Base(contractPath)

	var fallbackName string
	var fallbackEntry combinedJSONEntry
	haveFallback := false

	for key, entry := range cj.Contracts {
		if !strings.Contains(key, contractPath) && !strings.Contains(key, base) {
			continue
		}
		name := contractNameFromKey(key)
		converted := combinedJSONEntry{Bin: entry.Bin, BinRuntime: entry.BinRuntime, Srcmap: entry.Srcmap, SrcmapRuntime: entry.SrcmapRuntime}
		if strings.TrimSpace(entry.BinRuntime) != "" {
			return name, converted, true
		}
		if !haveFallback {
			fallbackName, fallbackEntry, haveFallback = name, converted, true
		}
	}
	if haveFallback {
		return fallbackName, fallbackEntry, true
	}
	return "", combinedJSONEntry{}, false
}

// combinedJSONEntry is the plain-struct copy of one contract's fields,
// decoupled from combinedJSON's anonymous struct type so selectContract can
// return it by value.
type combinedJSONEntry struct {
	Bin           string
	BinRuntime    string
	Srcmap        string
	SrcmapRuntime string
}

func contractNameFromKey(key string) string {
	if idx := strings.LastIndex(key, ":"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// normalizeHex strips an accidental "0x" prefix and lowercases solc's hex
// output by round-tripping it through go-ethereum's hex codec, the same
// decode/re-encode path the disassembler and report packages use for every
// other byte blob in this detector.
func normalizeHex(hexStr string) string {
	if hexStr == "" {
		return ""
	}
	raw := common.FromHex(hexStr)
	if len(raw) == 0 {
		return hexStr
	}
	return common.Bytes2Hex(raw)
}

// ContractNamesIn extracts every non-interface contract name declared in a
// source file, in declaration order, mirroring
// _extract_all_contract_names. No other package calls it.
func ContractNamesIn(lines []string) []string {
	names := make([]string, 0)
	for _, raw := range lines {
		if strings.Contains(raw, "interface") {
			continue
		}
		if m := reContractDecl.FindStringSubmatch(raw); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}
