package review

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/gradelab/gograder/internal/models"
)

var (
	fenceOpen  = regexp.MustCompile("^```(json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

type wireBreakdown struct {
	Logic        float64 `json:"logic_score"`
	Algorithm    float64 `json:"algorithm_score"`
	Style        float64 `json:"style_score"`
	Optimization float64 `json:"optimization_score"`
}

type wireReview struct {
	HasRubric    bool           `json:"has_rubric"`
	TotalScore   *float64       `json:"total_score"`
	Breakdown    *wireBreakdown `json:"breakdown"`
	DetectedAlgo string         `json:"detected_algo"`
	Strengths    string         `json:"strengths"`
	Weaknesses   string         `json:"weaknesses"`
	Reasoning    string         `json:"reasoning_feedback"`
	Improvement  string         `json:"improvement_feedback"`
	Complexity   string         `json:"complexity_analysis"`
}

// parseResponse turns the raw model output into a Review. Code fences are
// tolerated and stripped. Sub-scores are clamped to their buckets
// independently; the total is clamped to 0-100 but deliberately not
// reconciled with the breakdown, so a disagreeing model stays visible.
func parseResponse(raw string, analysis *models.AnalysisResult) (*models.Review, error) {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```") {
		clean = fenceOpen.ReplaceAllString(clean, "")
		clean = fenceClose.ReplaceAllString(clean, "")
		clean = strings.TrimSpace(clean)
	}

	var wire wireReview
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return nil, fmt.Errorf("reviewer returned malformed JSON: %w", err)
	}

	algorithms := wire.DetectedAlgo
	if algorithms == "" {
		algorithms = models.JoinAlgorithms(analysis.Algorithms)
	}

	// Without a rubric the reviewer comments but does not score.
	if !wire.HasRubric || wire.TotalScore == nil {
		reasoning := wire.Reasoning
		if reasoning == "" {
			reasoning = "No commentary returned."
		}
		return &models.Review{
			TotalScore:         nil,
			Breakdown:          nil,
			HasRubric:          false,
			Algorithms:         algorithms,
			Strengths:          wire.Strengths,
			Weaknesses:         wire.Weaknesses,
			Reasoning:          reasoning,
			Improvement:        wire.Improvement,
			ComplexityAnalysis: wire.Complexity,
			Notes:              []string{},
			AIScored:           true,
		}, nil
	}

	total := clamp(*wire.TotalScore, 0, 100)
	var bd wireBreakdown
	if wire.Breakdown != nil {
		bd = *wire.Breakdown
	}
	breakdown := &models.ScoreBreakdown{
		Logic:        clamp(bd.Logic, 0, 40),
		Algorithm:    clamp(bd.Algorithm, 0, 40),
		Style:        clamp(bd.Style, 0, 10),
		Optimization: clamp(bd.Optimization, 0, 10),
	}

	return &models.Review{
		TotalScore:         &total,
		Breakdown:          breakdown,
		HasRubric:          true,
		Algorithms:         algorithms,
		Strengths:          wire.Strengths,
		Weaknesses:         wire.Weaknesses,
		Reasoning:          wire.Reasoning,
		Improvement:        wire.Improvement,
		ComplexityAnalysis: wire.Complexity,
		Notes:              []string{},
		AIScored:           true,
	}, nil
}

func clamp(v float64, lo, hi int) int {
	n := int(v)
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
