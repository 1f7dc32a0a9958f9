// Package models defines the core domain types for gograder.
package models

import (
	"strings"
	"time"
)

// ResultStatus represents the grading outcome of a single submission unit.
type ResultStatus string

const (
	ResultStatusPending ResultStatus = "PENDING"
	ResultStatusPass    ResultStatus = "PASS"
	ResultStatusFail    ResultStatus = "FAIL"
	ResultStatusFlag    ResultStatus = "FLAG"
)

// JobStatus represents the current state of a grading job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// SourceUnit is one submitted source file after upstream extraction.
type SourceUnit struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// DSUsage records which data-structure kinds appear in a submission.
type DSUsage struct {
	Slice  bool `json:"slice"`
	Map    bool `json:"map"`
	Set    bool `json:"set"`
	Struct bool `json:"struct"`
	Deque  bool `json:"deque"`
}

// Any reports whether at least one data-structure kind was used.
func (d DSUsage) Any() bool {
	return d.Slice || d.Map || d.Set || d.Struct || d.Deque
}

// AlgoHints records structural patterns that suggest specific techniques.
type AlgoHints struct {
	Swap    bool `json:"swap"`
	Halving bool `json:"halving"`
	Memo    bool `json:"memo"`
	Matrix  bool `json:"matrix"`
}

// FeatureRecord is the immutable output of one feature-extraction walk.
// Tokens feeds fingerprinting only and is never exposed downstream.
type FeatureRecord struct {
	Loops        int       `json:"loops"`
	Conds        int       `json:"conds"`
	FuncCount    int       `json:"func_count"`
	MaxLoopDepth int       `json:"max_loop_depth"`
	NestedLoops  bool      `json:"nested_loops"`
	Recursion    bool      `json:"recursion"`
	TypeDefined  bool      `json:"type_defined"`
	DS           DSUsage   `json:"ds_usage"`
	Hints        AlgoHints `json:"algo_hints"`
	FuncNames    []string  `json:"func_names"`
	VarNames     []string  `json:"var_names"`
	Tokens       []string  `json:"-"`
}

// Fingerprint is a set of 3-token shingles used for similarity comparison.
// It exists only between analysis and similarity detection, never persisted.
type Fingerprint map[string]struct{}

// ScoreBreakdown holds the four graded sub-scores.
// Ranges: logic 0-40, algorithm 0-40, style 0-10, optimization 0-10.
type ScoreBreakdown struct {
	Logic        int `json:"logic_score"`
	Algorithm    int `json:"algorithm_score"`
	Style        int `json:"style_score"`
	Optimization int `json:"optimization_score"`
}

// Sum returns the arithmetic total of the sub-scores.
func (b ScoreBreakdown) Sum() int {
	return b.Logic + b.Algorithm + b.Style + b.Optimization
}

// FallbackScore is the deterministic rule-based score computed from the
// feature record. Total always equals Breakdown.Sum().
type FallbackScore struct {
	Total     int            `json:"total_score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// AnalysisResult is the normalized per-submission static-analysis output.
type AnalysisResult struct {
	Name         string         `json:"filename"`
	Valid        bool           `json:"valid"`
	Algorithms   []string       `json:"algorithms"`
	Complexity   int            `json:"complexity"`
	MaxLoopDepth int            `json:"max_loop_depth"`
	Fingerprint  Fingerprint    `json:"-"`
	Fallback     *FallbackScore `json:"-"`
	Features     *FeatureRecord `json:"-"`
	Notes        []string       `json:"notes"`
	Status       ResultStatus   `json:"status"`
}

// JoinAlgorithms renders the detected algorithm tags as one display string.
// A submission with no recognizable technique is labeled "Basic Logic".
func JoinAlgorithms(algos []string) string {
	if len(algos) == 0 {
		return "Basic Logic"
	}
	return strings.Join(algos, ", ")
}

// Review is the parsed output of the external reviewer, or of the fallback
// path when the reviewer is unreachable or no rubric exists.
type Review struct {
	TotalScore         *int            `json:"total_score"`
	Breakdown          *ScoreBreakdown `json:"breakdown"`
	HasRubric          bool            `json:"has_rubric"`
	Algorithms         string          `json:"algorithms"`
	Strengths          string          `json:"strengths"`
	Weaknesses         string          `json:"weaknesses"`
	Reasoning          string          `json:"reasoning"`
	Improvement        string          `json:"improvement"`
	ComplexityAnalysis string          `json:"complexity_analysis"`
	Notes              []string        `json:"notes"`
	AIScored           bool            `json:"ai_scored"`
}

// GradedResult is the final merged per-submission record, persisted and
// returned to callers. Fingerprint is carried only until the similarity
// detector has consumed the batch, then stripped.
type GradedResult struct {
	Name               string          `json:"filename"`
	TotalScore         *int            `json:"total_score"`
	Breakdown          *ScoreBreakdown `json:"breakdown,omitempty"`
	HasRubric          bool            `json:"has_rubric"`
	Status             ResultStatus    `json:"status"`
	Algorithms         string          `json:"algorithms"`
	Complexity         int             `json:"complexity"`
	MaxLoopDepth       int             `json:"max_loop_depth"`
	Strengths          string          `json:"strengths,omitempty"`
	Weaknesses         string          `json:"weaknesses,omitempty"`
	Reasoning          string          `json:"reasoning,omitempty"`
	Improvement        string          `json:"improvement,omitempty"`
	ComplexityAnalysis string          `json:"complexity_analysis,omitempty"`
	Notes              []string        `json:"notes"`
	Valid              bool            `json:"valid"`
	AIScored           bool            `json:"ai_scored"`
	Fingerprint        Fingerprint     `json:"-"`
}

// JobSummary aggregates a completed job.
type JobSummary struct {
	FileCount  int      `json:"total_files"`
	AvgScore   *float64 `json:"avg_score"`
	ElapsedSec float64  `json:"elapsed_sec"`
	Persisted  int      `json:"saved_to_db"`
}

// Job is one grading job as tracked by the in-memory job store.
type Job struct {
	ID        string         `json:"id"`
	Status    JobStatus      `json:"status"`
	Student   string         `json:"student"`
	CreatedAt time.Time      `json:"created_at"`
	Results   []GradedResult `json:"results,omitempty"`
	Summary   *JobSummary    `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ScoreRecord is one persisted grading result row.
type ScoreRecord struct {
	ID             string          `json:"id"`
	Filename       string          `json:"filename"`
	Student        string          `json:"student"`
	AssignmentCode string          `json:"assignment_code,omitempty"`
	TotalScore     *int            `json:"total_score"`
	Breakdown      *ScoreBreakdown `json:"breakdown,omitempty"`
	Status         ResultStatus    `json:"status"`
	Algorithms     string          `json:"algorithms"`
	HasRubric      bool            `json:"has_rubric"`
	AIScored       bool            `json:"ai_scored"`
	Notes          []string        `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ScoreStats aggregates persisted scores, optionally per assignment.
// Bands maps score ranges to counts (90-100, 75-89, 60-74, 40-59, 0-39).
type ScoreStats struct {
	Count   int            `json:"count"`
	Average *float64       `json:"average"`
	Min     *int           `json:"min"`
	Max     *int           `json:"max"`
	Bands   map[string]int `json:"bands"`
}

// AuditEntry is one row of the grading audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	InputHash string    `json:"input_hash"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Rubric is the problem-bank metadata for one topic, if any.
type Rubric struct {
	Title        string `json:"title,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	Rubric       string `json:"rubric,omitempty"`
}

// HasCriteria reports whether the rubric carries usable grading criteria.
// A nil rubric (bank unreachable or topic unknown) has none.
func (r *Rubric) HasCriteria() bool {
	return r != nil && (r.Rubric != "" || r.Requirements != "")
}
