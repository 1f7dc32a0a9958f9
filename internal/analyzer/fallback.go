package analyzer

import "github.com/gradelab/gograder/internal/models"

// fallbackScore computes the deterministic rule-based score used whenever
// the external reviewer cannot produce one. Buckets: logic 0-40, algorithm
// 0-40, style 0-10, optimization 0-10.
func fallbackScore(rec *models.FeatureRecord, complexity int, algoCount int) *models.FallbackScore {
	logic := 15
	if rec.FuncCount > 0 {
		logic += 8
	}
	if rec.TypeDefined {
		logic += 5
	}
	if rec.Recursion {
		logic += 6
	}
	if rec.Loops > 0 {
		logic += 4
	}
	if rec.Conds > 0 {
		logic += 2
	}
	logic = minInt(logic, 40)

	algo := 10
	algo += minInt(algoCount*8, 20)
	algo += minInt(complexity-1, 10)
	algo = minInt(algo, 40)

	style := 6
	if rec.FuncCount >= 2 {
		style += 2
	}
	if rec.DS.Any() {
		style += 2
	}
	style = minInt(style, 10)

	optim := 5
	if !rec.NestedLoops {
		optim += 2
	}
	if rec.DS.Set || rec.DS.Map {
		optim += 2
	}
	if rec.Hints.Memo {
		optim += 1
	}
	optim = minInt(optim, 10)

	b := models.ScoreBreakdown{
		Logic:        logic,
		Algorithm:    algo,
		Style:        style,
		Optimization: optim,
	}
	return &models.FallbackScore{Total: b.Sum(), Breakdown: b}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
