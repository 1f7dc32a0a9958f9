package analyzer

import (
	"sort"
	"strings"

	"github.com/gradelab/gograder/internal/models"
)

// nameLabel pairs a lowercase name fragment with the algorithm label it
// implies. Ordered so detection output is stable.
type nameLabel struct {
	keyword string
	label   string
}

var nameLabels = []nameLabel{
	{"binary_search", "Binary Search"},
	{"binarysearch", "Binary Search"},
	{"quick_sort", "Quick Sort"},
	{"quicksort", "Quick Sort"},
	{"merge_sort", "Merge Sort"},
	{"mergesort", "Merge Sort"},
	{"bubble_sort", "Bubble Sort"},
	{"bubblesort", "Bubble Sort"},
	{"insertion_sort", "Insertion Sort"},
	{"insertionsort", "Insertion Sort"},
	{"selection_sort", "Selection Sort"},
	{"selectionsort", "Selection Sort"},
	{"heap_sort", "Heap Sort"},
	{"heapsort", "Heap Sort"},
	{"factorial", "Math/Factorial"},
	{"fibonacci", "Dynamic Programming / Fibonacci"},
	{"dfs", "Depth-First Search"},
	{"bfs", "Breadth-First Search"},
	{"dijkstra", "Dijkstra's Algorithm"},
	{"linkedlist", "Linked List"},
	{"linked_list", "Linked List"},
	{"stack", "Stack"},
	{"queue", "Queue"},
	{"tree", "Tree Structure"},
	{"graph", "Graph Structure"},
	{"hash_map", "Hash Map"},
	{"hashmap", "Hash Map"},
}

// classify combines structural pattern flags with name-based keyword matching
// to tag the algorithms and data structures a submission appears to use.
// The result is sorted and deduplicated.
func classify(rec *models.FeatureRecord) []string {
	var detected []string

	if rec.Recursion {
		detected = append(detected, "Recursion")
	}
	if rec.NestedLoops {
		detected = append(detected, "Nested Loops")
	} else if rec.Loops > 0 {
		detected = append(detected, "Iterative Logic")
	}
	if rec.Hints.Halving {
		detected = append(detected, "Binary Search")
	}
	if rec.Hints.Memo {
		detected = append(detected, "Dynamic Programming")
	}
	if rec.Hints.Matrix {
		detected = append(detected, "Matrix Operations")
	}
	if rec.Hints.Swap {
		detected = append(detected, "Swap Pattern")
	}

	allNames := strings.Join(append(append([]string{}, rec.FuncNames...), rec.VarNames...), " ")
	for _, nl := range nameLabels {
		if strings.Contains(allNames, nl.keyword) {
			detected = append(detected, nl.label)
		}
	}

	// append + pop together read like stack or queue manipulation.
	if strings.Contains(allNames, "append") && strings.Contains(allNames, "pop") {
		if !contains(detected, "Stack") && !contains(detected, "Queue") {
			detected = append(detected, "Stack/Queue Operations")
		}
	}

	return sortedUnique(detected)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedUnique(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
