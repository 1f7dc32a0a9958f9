package analyzer

import (
	"strings"
	"testing"

	"github.com/gradelab/gograder/internal/models"
)

func analyze(t *testing.T, name, src string) *models.AnalysisResult {
	t.Helper()
	return New().Analyze(models.SourceUnit{Name: name, Text: src})
}

func TestAnalyzeRecursiveFunction(t *testing.T) {
	src := `package main

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	return n * factorial(n - 1)
}
`
	res := analyze(t, "factorial.go", src)
	if !res.Valid {
		t.Fatalf("expected valid result, got notes %v", res.Notes)
	}
	if !res.Features.Recursion {
		t.Error("expected recursion to be detected")
	}
	if res.Features.FuncCount != 1 {
		t.Errorf("expected 1 function, got %d", res.Features.FuncCount)
	}
	if res.Complexity != 2 {
		t.Errorf("expected complexity 2, got %d", res.Complexity)
	}
	if !containsString(res.Algorithms, "Recursion") {
		t.Errorf("expected Recursion tag, got %v", res.Algorithms)
	}
	if !containsString(res.Algorithms, "Math/Factorial") {
		t.Errorf("expected Math/Factorial tag, got %v", res.Algorithms)
	}
	if res.Status != models.ResultStatusPending {
		t.Errorf("expected PENDING status, got %s", res.Status)
	}
}

func TestAnalyzeNestedLoopsAndSwap(t *testing.T) {
	src := `package main

func bubbleSort(a []int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(a)-1-i; j++ {
			if a[j] > a[j+1] {
				a[j], a[j+1] = a[j+1], a[j]
			}
		}
	}
}
`
	res := analyze(t, "sort.go", src)
	if !res.Features.NestedLoops {
		t.Error("expected nested loops")
	}
	if res.MaxLoopDepth != 2 {
		t.Errorf("expected loop depth 2, got %d", res.MaxLoopDepth)
	}
	if !res.Features.Hints.Swap {
		t.Error("expected swap pattern")
	}
	for _, want := range []string{"Bubble Sort", "Nested Loops", "Swap Pattern"} {
		if !containsString(res.Algorithms, want) {
			t.Errorf("expected %q in %v", want, res.Algorithms)
		}
	}
}

func TestAnalyzeHalvingLoop(t *testing.T) {
	src := `package main

func search(a []int, target int) int {
	lo := 0
	hi := len(a) - 1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if a[mid] == target {
			return mid
		}
		if a[mid] < target {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return -1
}
`
	res := analyze(t, "search.go", src)
	if !res.Features.Hints.Halving {
		t.Error("expected halving pattern in while-shaped loop")
	}
	if !containsString(res.Algorithms, "Binary Search") {
		t.Errorf("expected Binary Search tag, got %v", res.Algorithms)
	}
	if !containsString(res.Algorithms, "Iterative Logic") {
		t.Errorf("expected Iterative Logic tag, got %v", res.Algorithms)
	}
}

func TestAnalyzeSnakeCaseNames(t *testing.T) {
	src := `package main

func binary_search(a []int, target int) int {
	linked_list := a
	hash_map := map[int]int{}
	_ = linked_list
	_ = hash_map
	return target
}
`
	res := analyze(t, "snake.go", src)
	for _, want := range []string{"Binary Search", "Linked List", "Hash Map"} {
		if !containsString(res.Algorithms, want) {
			t.Errorf("expected %q in %v", want, res.Algorithms)
		}
	}
}

func TestAnalyzeDataStructuresAndMemo(t *testing.T) {
	src := `package main

func fibonacci(n int) int {
	memo := make(map[int]int)
	seen := make(map[string]struct{})
	var a []int
	a = append(a, 1)
	_ = seen
	_ = a
	_ = memo
	return n
}
`
	res := analyze(t, "fib.go", src)
	if !res.Features.DS.Map {
		t.Error("expected map usage")
	}
	if !res.Features.DS.Set {
		t.Error("expected set usage from map[...]struct{}")
	}
	if !res.Features.DS.Slice {
		t.Error("expected slice usage")
	}
	if !res.Features.Hints.Memo {
		t.Error("expected memo hint from 'memo' target")
	}
	if !containsString(res.Algorithms, "Dynamic Programming") {
		t.Errorf("expected Dynamic Programming tag, got %v", res.Algorithms)
	}
}

func TestAnalyzeRejectsUnsafeCode(t *testing.T) {
	src := `package main

import (
	"os"
	"os/exec"
)

func run() {
	f, _ := os.Open("x")
	_ = f
	cmd := exec.Command("ls")
	_ = cmd
}
`
	res := analyze(t, "evil.go", src)
	if res.Valid {
		t.Fatal("expected invalid result for deny-listed code")
	}
	if res.Status != models.ResultStatusFlag {
		t.Fatalf("expected FLAG status, got %s", res.Status)
	}
	// message plus two forbidden imports and two unsafe calls
	if len(res.Notes) != 5 {
		t.Fatalf("expected 5 notes, got %v", res.Notes)
	}
	if res.Notes[0] != "safety violation" {
		t.Errorf("unexpected lead note %q", res.Notes[0])
	}
	joined := strings.Join(res.Notes, "; ")
	for _, want := range []string{"forbidden import: os", "forbidden import: os/exec", "unsafe call: os.Open()", "unsafe call: exec.Command()"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in notes %v", want, res.Notes)
		}
	}
}

func TestAnalyzeSyntaxError(t *testing.T) {
	res := analyze(t, "broken.go", "package main\nfunc broken( {\n")
	if res.Valid {
		t.Fatal("expected invalid result for unparseable source")
	}
	if res.Status != models.ResultStatusFail {
		t.Fatalf("expected FAIL status, got %s", res.Status)
	}
	if len(res.Notes) == 0 || !strings.HasPrefix(res.Notes[0], "syntax error at line") {
		t.Errorf("expected positioned syntax note, got %v", res.Notes)
	}
}

func TestFingerprintRequiresThreeTokens(t *testing.T) {
	res := analyze(t, "empty.go", "package main\n")
	if res.Fingerprint != nil {
		t.Errorf("expected nil fingerprint for trivial file, got %d shingles", len(res.Fingerprint))
	}

	full := analyze(t, "full.go", `package main

func add(a, b int) int {
	return a + b
}
`)
	if len(full.Fingerprint) == 0 {
		t.Error("expected non-empty fingerprint for a real function")
	}
}

func TestFingerprintIgnoresIdentifierNames(t *testing.T) {
	a := analyze(t, "a.go", `package main

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
`)
	b := analyze(t, "b.go", `package main

func accumulate(items []int) int {
	acc := 0
	for _, x := range items {
		acc += x
	}
	return acc
}
`)
	if len(a.Fingerprint) != len(b.Fingerprint) {
		t.Fatalf("renamed copies should fingerprint identically: %d vs %d", len(a.Fingerprint), len(b.Fingerprint))
	}
	for sh := range a.Fingerprint {
		if _, ok := b.Fingerprint[sh]; !ok {
			t.Fatalf("shingle %q missing from renamed copy", sh)
		}
	}
}

func TestFallbackScoreSchedule(t *testing.T) {
	src := `package main

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	return n * factorial(n - 1)
}
`
	res := analyze(t, "factorial.go", src)
	fb := res.Fallback
	if fb == nil {
		t.Fatal("expected fallback score")
	}
	// logic 15+8(funcs)+6(recursion)+2(conds) = 31
	if fb.Breakdown.Logic != 31 {
		t.Errorf("logic = %d, want 31", fb.Breakdown.Logic)
	}
	// algorithm 10 + 2 tags * 8 + (complexity 2 - 1) = 27
	if fb.Breakdown.Algorithm != 27 {
		t.Errorf("algorithm = %d, want 27", fb.Breakdown.Algorithm)
	}
	if fb.Breakdown.Style != 6 {
		t.Errorf("style = %d, want 6", fb.Breakdown.Style)
	}
	// optimization 5 + 2 (no nested loops)
	if fb.Breakdown.Optimization != 7 {
		t.Errorf("optimization = %d, want 7", fb.Breakdown.Optimization)
	}
	if fb.Total != fb.Breakdown.Sum() {
		t.Errorf("total %d does not match breakdown sum %d", fb.Total, fb.Breakdown.Sum())
	}
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
