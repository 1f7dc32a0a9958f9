package grader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gradelab/gograder/internal/models"
)

const validSrc = `package main

func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	return n * factorial(n - 1)
}
`

type mockBank struct {
	rubric *models.Rubric
	topics []string
}

func (m *mockBank) Fetch(_ context.Context, topic string) *models.Rubric {
	m.topics = append(m.topics, topic)
	return m.rubric
}

type mockReviewer struct {
	review *models.Review
	err    error
	calls  int
}

func (m *mockReviewer) Review(_ context.Context, _ string, _ *models.AnalysisResult, _ *models.Rubric) (*models.Review, error) {
	m.calls++
	return m.review, m.err
}

func scored(total int) *models.Review {
	return &models.Review{
		TotalScore: &total,
		Breakdown:  &models.ScoreBreakdown{Logic: 30, Algorithm: 25, Style: 8, Optimization: 7},
		HasRubric:  true,
		Algorithms: "Recursion",
		Notes:      []string{},
		AIScored:   true,
	}
}

func TestGradePassAtThreshold(t *testing.T) {
	bank := &mockBank{rubric: &models.Rubric{Rubric: "criteria"}}
	g := New(bank, &mockReviewer{review: scored(50)}, 50)

	res := g.Grade(context.Background(), models.SourceUnit{Name: "factorial.go", Text: validSrc}, "recursion-basics")

	if res.Status != models.ResultStatusPass {
		t.Errorf("status = %s, want PASS at the threshold", res.Status)
	}
	if !res.Valid || !res.AIScored {
		t.Errorf("valid=%t ai_scored=%t", res.Valid, res.AIScored)
	}
	if len(bank.topics) != 1 || bank.topics[0] != "recursion-basics" {
		t.Errorf("bank lookups = %v", bank.topics)
	}
	if res.Fingerprint == nil {
		t.Error("fingerprint must be carried until similarity detection")
	}
}

func TestGradeFailBelowThreshold(t *testing.T) {
	g := New(&mockBank{rubric: &models.Rubric{Rubric: "criteria"}}, &mockReviewer{review: scored(49)}, 50)
	res := g.Grade(context.Background(), models.SourceUnit{Name: "f.go", Text: validSrc}, "")
	if res.Status != models.ResultStatusFail {
		t.Errorf("status = %s, want FAIL below threshold", res.Status)
	}
}

func TestGradePendingWithoutRubricScore(t *testing.T) {
	unscored := &models.Review{HasRubric: false, Algorithms: "Recursion", Notes: []string{}, AIScored: true}
	g := New(&mockBank{}, &mockReviewer{review: unscored}, 50)

	res := g.Grade(context.Background(), models.SourceUnit{Name: "f.go", Text: validSrc}, "")
	if res.Status != models.ResultStatusPending {
		t.Errorf("status = %s, want PENDING without a score", res.Status)
	}
	if res.TotalScore != nil {
		t.Errorf("total = %v, want nil", *res.TotalScore)
	}
}

func TestGradeReviewerFailureFallsBack(t *testing.T) {
	rev := &mockReviewer{err: errors.New("rate limited")}
	g := New(&mockBank{rubric: &models.Rubric{Rubric: "criteria"}}, rev, 50)

	res := g.Grade(context.Background(), models.SourceUnit{Name: "f.go", Text: validSrc}, "")

	if rev.calls != 1 {
		t.Fatalf("reviewer called %d times, want exactly 1 (no retry)", rev.calls)
	}
	if res.AIScored {
		t.Error("fallback result must not claim a model score")
	}
	if res.TotalScore == nil {
		t.Fatal("rubric present: fallback must still score")
	}
	if res.Status != models.ResultStatusPass && res.Status != models.ResultStatusFail {
		t.Errorf("status = %s, want a decided status from the fallback score", res.Status)
	}
}

func TestGradeNilCollaborators(t *testing.T) {
	g := New(nil, nil, 50)
	res := g.Grade(context.Background(), models.SourceUnit{Name: "f.go", Text: validSrc}, "")

	if res.Status != models.ResultStatusPending {
		t.Errorf("status = %s, want PENDING with no bank and no reviewer", res.Status)
	}
	if res.TotalScore != nil {
		t.Errorf("total = %v, want nil", *res.TotalScore)
	}
	if len(res.Notes) == 0 {
		t.Error("expected the missing-criteria note")
	}
}

func TestGradeInvalidSubmissionShortCircuits(t *testing.T) {
	bank := &mockBank{rubric: &models.Rubric{Rubric: "criteria"}}
	rev := &mockReviewer{review: scored(90)}
	g := New(bank, rev, 50)

	res := g.Grade(context.Background(), models.SourceUnit{Name: "broken.go", Text: "package main\nfunc oops( {\n"}, "")

	if res.Valid {
		t.Fatal("expected invalid result")
	}
	if res.Status != models.ResultStatusFail {
		t.Errorf("status = %s, want FAIL for a syntax error", res.Status)
	}
	if res.TotalScore == nil || *res.TotalScore != 0 {
		t.Errorf("total = %v, want 0", res.TotalScore)
	}
	if res.Algorithms != "Analysis failed" {
		t.Errorf("algorithms = %q", res.Algorithms)
	}
	if len(bank.topics) != 0 || rev.calls != 0 {
		t.Error("rubric and reviewer must not run for invalid submissions")
	}
}

func TestGradeFlaggedSubmissionKeepsViolations(t *testing.T) {
	g := New(nil, nil, 50)
	src := "package main\n\nimport \"os\"\n\nfunc f() { os.Remove(\"x\") }\n"

	res := g.Grade(context.Background(), models.SourceUnit{Name: "evil.go", Text: src}, "")

	if res.Status != models.ResultStatusFlag {
		t.Fatalf("status = %s, want FLAG", res.Status)
	}
	joined := strings.Join(res.Notes, "; ")
	if !strings.Contains(joined, "forbidden import: os") {
		t.Errorf("notes = %v", res.Notes)
	}
}
