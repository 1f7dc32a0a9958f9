package review

import "github.com/gradelab/gograder/internal/models"

// Fallback builds the review used when no external reviewer is available or
// the reviewer failed. With a rubric present the deterministic rule-based
// score stands in; without one the submission stays unscored.
func Fallback(analysis *models.AnalysisResult, rubric *models.Rubric) *models.Review {
	hasRubric := rubric.HasCriteria()

	r := &models.Review{
		HasRubric:  hasRubric,
		Algorithms: models.JoinAlgorithms(analysis.Algorithms),
		Notes:      []string{},
		AIScored:   false,
	}

	if hasRubric {
		total := 30
		if analysis.Fallback != nil {
			total = analysis.Fallback.Total
			bd := analysis.Fallback.Breakdown
			r.Breakdown = &bd
		}
		r.TotalScore = &total
		r.Reasoning = "Score derived from structural code analysis."
		return r
	}

	r.Reasoning = "Problem bank not connected. Structural analysis only, no score assigned."
	r.Notes = []string{"Grading criteria not yet available."}
	return r
}
