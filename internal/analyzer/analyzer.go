// Package analyzer performs static analysis of submitted Go source files:
// a safety scan against deny-listed imports and calls, a single-pass
// feature-extraction walk, algorithm classification, structural
// fingerprinting, and a deterministic fallback score.
package analyzer

import (
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"

	"github.com/gradelab/gograder/internal/models"
)

// Analyzer turns one source unit into a normalized analysis result. It is
// stateless and safe for concurrent use.
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Analyze parses and inspects a single submission unit. It never returns an
// error: syntax failures and safety violations become invalid results with
// the reason in Notes.
func (a *Analyzer) Analyze(unit models.SourceUnit) *models.AnalysisResult {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, unit.Name, unit.Text, parser.SkipObjectResolution)
	if err != nil {
		return errorResult(unit.Name, parseErrorMessage(err), nil, models.ResultStatusFail)
	}

	if violations := scanSafety(file); len(violations) > 0 {
		return errorResult(unit.Name, "safety violation", violations, models.ResultStatusFlag)
	}

	rec, complexity := extract(file)
	algos := classify(rec)
	fp := shingles(rec.Tokens)
	fallback := fallbackScore(rec, complexity, len(algos))

	return &models.AnalysisResult{
		Name:         unit.Name,
		Valid:        true,
		Algorithms:   algos,
		Complexity:   complexity,
		MaxLoopDepth: rec.MaxLoopDepth,
		Fingerprint:  fp,
		Fallback:     fallback,
		Features:     rec,
		Notes:        []string{},
		Status:       models.ResultStatusPending,
	}
}

// parseErrorMessage flattens a parser failure into one line, keeping the
// position of the first error when available.
func parseErrorMessage(err error) string {
	if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
		first := list[0]
		return fmt.Sprintf("syntax error at line %d: %s", first.Pos.Line, first.Msg)
	}
	return fmt.Sprintf("parse error: %v", err)
}

func errorResult(name, message string, notes []string, status models.ResultStatus) *models.AnalysisResult {
	return &models.AnalysisResult{
		Name:   name,
		Valid:  false,
		Notes:  append([]string{message}, notes...),
		Status: status,
	}
}
