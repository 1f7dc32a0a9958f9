// Package grader runs the per-submission pipeline: static analysis, rubric
// lookup, external review with fallback, and the final merge into a graded
// result.
package grader

import (
	"context"
	"log"

	"github.com/gradelab/gograder/internal/analyzer"
	"github.com/gradelab/gograder/internal/models"
	"github.com/gradelab/gograder/internal/review"
	"github.com/gradelab/gograder/internal/rubric"
)

// Grader grades one source unit at a time. Both collaborators are optional:
// a nil fetcher means no rubric, a nil reviewer means rule-based scoring
// only. Safe for concurrent use.
type Grader struct {
	analyzer      *analyzer.Analyzer
	bank          rubric.Fetcher
	reviewer      review.Reviewer
	passThreshold int
}

func New(bank rubric.Fetcher, reviewer review.Reviewer, passThreshold int) *Grader {
	if passThreshold <= 0 {
		passThreshold = 50
	}
	return &Grader{
		analyzer:      analyzer.New(),
		bank:          bank,
		reviewer:      reviewer,
		passThreshold: passThreshold,
	}
}

// Grade runs the full pipeline for one unit. Invalid submissions (syntax
// errors, safety violations) short-circuit before the rubric and reviewer
// steps. Grade never fails; reviewer trouble degrades to the fallback score.
func (g *Grader) Grade(ctx context.Context, unit models.SourceUnit, topic string) models.GradedResult {
	analysis := g.analyzer.Analyze(unit)
	if !analysis.Valid {
		log.Printf("grader: analysis failed for %q: %v", unit.Name, analysis.Notes)
		return invalidResult(analysis)
	}

	lookup := topic
	if lookup == "" {
		lookup = unit.Name
	}
	var rb *models.Rubric
	if g.bank != nil {
		rb = g.bank.Fetch(ctx, lookup)
	}

	var rev *models.Review
	if g.reviewer != nil {
		var err error
		rev, err = g.reviewer.Review(ctx, unit.Text, analysis, rb)
		if err != nil {
			log.Printf("grader: review failed for %q: %v", unit.Name, err)
			rev = nil
		}
	}
	if rev == nil {
		rev = review.Fallback(analysis, rb)
	}

	return g.merge(analysis, rev)
}

// merge folds the review into the analysis. A status is only decided when a
// rubric-backed score exists; everything else stays PENDING.
func (g *Grader) merge(analysis *models.AnalysisResult, rev *models.Review) models.GradedResult {
	status := models.ResultStatusPending
	if rev.TotalScore != nil && rev.HasRubric {
		if *rev.TotalScore >= g.passThreshold {
			status = models.ResultStatusPass
		} else {
			status = models.ResultStatusFail
		}
	}

	notes := append(append([]string{}, analysis.Notes...), rev.Notes...)

	return models.GradedResult{
		Name:               analysis.Name,
		TotalScore:         rev.TotalScore,
		Breakdown:          rev.Breakdown,
		HasRubric:          rev.HasRubric,
		Status:             status,
		Algorithms:         rev.Algorithms,
		Complexity:         analysis.Complexity,
		MaxLoopDepth:       analysis.MaxLoopDepth,
		Strengths:          rev.Strengths,
		Weaknesses:         rev.Weaknesses,
		Reasoning:          rev.Reasoning,
		Improvement:        rev.Improvement,
		ComplexityAnalysis: rev.ComplexityAnalysis,
		Notes:              notes,
		Valid:              true,
		AIScored:           rev.AIScored,
		Fingerprint:        analysis.Fingerprint,
	}
}

func invalidResult(analysis *models.AnalysisResult) models.GradedResult {
	zero := 0
	return models.GradedResult{
		Name:       analysis.Name,
		TotalScore: &zero,
		Status:     analysis.Status,
		Algorithms: "Analysis failed",
		Notes:      analysis.Notes,
		Valid:      false,
	}
}
