package format

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/upprsk/tree-sitter-yal/parser"
	"github.com/upprsk/tree-sitter-yal/tree"
	"github.com/upprsk/tree-sitter-yal/yal"
)

var testcasesDir string
var testFilter string

func init() {
	flag.StringVar(&testcasesDir, "testcases", "testdata", "directory containing .yal test files")
	flag.StringVar(&testFilter, "filter", "", "filter test files by substring match on filename")
}

func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}

// TestRoundTrip_Testcases pretty prints every .yal file under -testcases,
// parses the result again and compares node counts.
// Use -filter to select files: go test ./format -filter=struct
func TestRoundTrip_Testcases(t *testing.T) {
	var files []string
	err := filepath.WalkDir(testcasesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".yal") {
			if testFilter != "" && !strings.Contains(path, testFilter) {
				return nil
			}
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk testcases directory: %v", err)
	}
	if len(files) == 0 {
		t.Skipf("no .yal files found in %s", testcasesDir)
	}

	for _, file := range files {
		relPath, err := filepath.Rel(testcasesDir, file)
		if err != nil {
			relPath = filepath.Base(file)
		}
		testName := strings.ReplaceAll(relPath, string(filepath.Separator), "_")
		testName = strings.TrimSuffix(testName, ".yal")

		t.Run(testName, func(t *testing.T) {
			runRoundTripTest(t, file)
		})
	}
}

func parseYal(t *testing.T, src []byte) *tree.Tree {
	t.Helper()
	tr, err := parser.New(yal.Grammar()).Parse(src, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tr
}

func runRoundTripTest(t *testing.T, filename string) {
	source, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}

	orig := parseYal(t, source)
	if orig.HasError() {
		t.Fatalf("original file has parse errors:\n%s", formatParseErrors(orig, source))
	}

	formatted, err := PrettyPrint(orig, source)
	if err != nil {
		t.Fatalf("formatter error: %v", err)
	}

	again := parseYal(t, formatted)
	if again.HasError() {
		t.Errorf("formatted output has parse errors:\n%s", formatParseErrors(again, formatted))
		t.Logf("\n=== Formatted output ===\n%s", formatted)
		return
	}

	if diffs := compareNodeCounts(countNodeKinds(orig), countNodeKinds(again)); len(diffs) > 0 {
		t.Errorf("node count mismatch after round-trip formatting:\n\n%s", formatDiffs(diffs))
	}

	twice, err := PrettyPrint(again, formatted)
	if err != nil {
		t.Fatalf("formatter error on formatted output: %v", err)
	}
	if !bytes.Equal(twice, formatted) {
		t.Errorf("formatting is not idempotent:\n=== first ===\n%s\n=== second ===\n%s", formatted, twice)
	}
}

// NodeCountDiff is a difference in node counts between the original and
// the formatted tree.
type NodeCountDiff struct {
	Kind      string
	Original  int
	Formatted int
}

func countNodeKinds(t *tree.Tree) map[string]int {
	counts := make(map[string]int)
	t.Walk().Walk(func(n tree.Node, _ string, _ int) bool {
		counts[n.Kind()]++
		return true
	})
	return counts
}

func formatParseErrors(t *tree.Tree, src []byte) string {
	var lines []string
	for _, n := range tree.Errors(t.Root()) {
		lines = append(lines, fmt.Sprintf("  - %s at %s: %q", n.Kind(), n.StartPoint(), n.Content(src)))
	}
	return strings.Join(lines, "\n")
}

func compareNodeCounts(original, formatted map[string]int) []NodeCountDiff {
	var diffs []NodeCountDiff
	allKinds := make(map[string]bool)
	for k := range original {
		allKinds[k] = true
	}
	for k := range formatted {
		allKinds[k] = true
	}
	for kind := range allKinds {
		if original[kind] != formatted[kind] {
			diffs = append(diffs, NodeCountDiff{Kind: kind, Original: original[kind], Formatted: formatted[kind]})
		}
	}
	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Kind < diffs[j].Kind
	})
	return diffs
}

func formatDiffs(diffs []NodeCountDiff) string {
	var sb strings.Builder
	for _, d := range diffs {
		fmt.Fprintf(&sb, "  %-20s original=%d formatted=%d\n", d.Kind, d.Original, d.Formatted)
	}
	return sb.String()
}
