// Package review produces the qualitative assessment and score for one
// submission, either from the external model or from the deterministic
// fallback path.
package review

import (
	"context"

	"github.com/gradelab/gograder/internal/models"
)

// Reviewer assesses one analyzed submission against its rubric. A non-nil
// error means the reviewer could not produce an assessment at all; callers
// switch to the fallback path in that case. Reviewers do not retry.
type Reviewer interface {
	Review(ctx context.Context, code string, analysis *models.AnalysisResult, rubric *models.Rubric) (*models.Review, error)
}
