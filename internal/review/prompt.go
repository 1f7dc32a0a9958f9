package review

import (
	"fmt"
	"strings"

	"github.com/gradelab/gograder/internal/models"
)

// buildPrompt assembles the reviewer instruction. The rubric section is
// dynamic: full criteria when the bank returned a rubric, requirements with
// generic criteria when only the assignment text exists, and an explicit
// no-scoring instruction when the bank had nothing.
func buildPrompt(code string, analysis *models.AnalysisResult, rubric *models.Rubric) string {
	features := analysis.Features
	summary := fmt.Sprintf(
		"Algorithms: %s | Complexity: %d | Loops: %d | Recursion: %t | Types: %t | Functions: %d",
		models.JoinAlgorithms(analysis.Algorithms),
		analysis.Complexity,
		features.Loops,
		features.Recursion,
		features.TypeDefined,
		features.FuncCount,
	)

	var rubricSection string
	switch {
	case rubric != nil && rubric.Rubric != "":
		rubricSection = "GRADING CRITERIA (from the problem bank):\n" + rubric.Rubric
	case rubric != nil && rubric.Requirements != "":
		rubricSection = "ASSIGNMENT REQUIREMENTS:\n" + rubric.Requirements + `

GRADING CRITERIA: no specific rubric exists for this assignment.
Assess overall: correctness of the logic, algorithm quality, code style,
and optimization.`
	default:
		rubricSection = `NOTE: the problem bank is not connected, so there are NO specific
grading criteria. Assess the code on:
- Is the logic correct?
- Is the algorithm appropriate for the problem?
- Is the code clean and readable?
- Is it optimized?
Do NOT assign a score. Comment and suggest only.`
	}

	hasRubric := rubric.HasCriteria()

	var b strings.Builder
	b.WriteString(`You are a senior developer reviewing a student's algorithm submission.
Grade STRICTLY, as if reviewing a production pull request.

STYLE:
- Be direct. Bad code gets called bad.
- Always ask: "Would I merge this PR?" If not, it does not deserve a high score.
- Running code is not the same as good code.
- Watch naming, readability, edge cases, Big-O, and whether the code is smart or merely working.

DEDUCTIONS:
- Runs but wrong logic: minus 15-20.
- Unhandled edge cases (empty slice, nil, negatives, duplicates): minus 5-10 each.
- Hardcoded answers: 0 points, non-negotiable.
- Brute-force O(n^2) where O(n log n) or O(n) exists: minus 15-20.
- Single-letter or meaningless names: minus 3-5.
- No comments or doc comments: minus 3.
- Copy-pasted repetition: minus 5.
- Unused imports, dead code, leftover debug prints: minus 2-3.

SCALE:
- 90-100: excellent; only about 5% of submissions reach this.
- 75-89: good idea, right algorithm, room to improve.
- 60-74: works but reads junior.
- 40-59: weak; logic errors, wrong algorithm, hard to read.
- 0-39: failing; fundamentally wrong or hardcoded.

`)
	b.WriteString(rubricSection)
	b.WriteString("\n\nAUTOMATED ANALYSIS:\n")
	b.WriteString(summary)
	b.WriteString("\n\nSOURCE UNDER REVIEW:\n```go\n")
	b.WriteString(code)
	b.WriteString("\n```\n\n")
	b.WriteString(fmt.Sprintf(`Respond with JSON only (no markdown, no extra text):
{
  "has_rubric": %t,
  "total_score": <0-100 when criteria exist, null otherwise>,
  "breakdown": {
    "logic_score": <0-40>,
    "algorithm_score": <0-40>,
    "style_score": <0-10>,
    "optimization_score": <0-10>
  },
  "detected_algo": "<algorithm name, e.g. Binary Search, BFS, Merge Sort>",
  "strengths": "<2-3 concise points, only what genuinely deserves praise>",
  "weaknesses": "<2-4 direct review comments with line references>",
  "reasoning_feedback": "<5-7 sentences of senior-reviewer commentary: specific errors, why, the real Big-O>",
  "improvement_feedback": "<concrete mentor suggestions, most serious issue first>",
  "complexity_analysis": "<Time: O(?), Space: O(?), with the why and a better approach if one exists>"
}`, hasRubric))

	return b.String()
}
