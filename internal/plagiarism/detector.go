// Package plagiarism compares the structural fingerprints of a graded batch
// and flags pairs whose overlap exceeds the similarity threshold.
package plagiarism

import (
	"fmt"
	"log"
	"math"

	"github.com/gradelab/gograder/internal/models"
)

// Detector flags near-duplicate submissions within one batch.
type Detector struct {
	threshold float64
}

// New returns a detector that flags pairs with Jaccard similarity strictly
// greater than threshold.
func New(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

// Check runs the pairwise comparison in place. Results without fingerprints
// (invalid or trivially small units) are skipped. Flagged pairs get
// reciprocal notes and both members are forced to FLAG. Fingerprints are
// stripped from every result afterward, whether flagged or not. Batches of
// fewer than two results are returned untouched.
func (d *Detector) Check(results []models.GradedResult) []models.GradedResult {
	if len(results) < 2 {
		return results
	}

	for i := range results {
		if len(results[i].Fingerprint) == 0 {
			continue
		}
		for j := i + 1; j < len(results); j++ {
			if len(results[j].Fingerprint) == 0 {
				continue
			}
			sim := jaccard(results[i].Fingerprint, results[j].Fingerprint)
			if sim <= d.threshold {
				continue
			}
			pct := int(math.Round(sim * 100))
			noteI := fmt.Sprintf("WARNING: %d%% overlap with submission from %s", pct, results[j].Name)
			noteJ := fmt.Sprintf("WARNING: %d%% overlap with submission from %s", pct, results[i].Name)
			if appendNote(&results[i], noteI) {
				results[i].Status = models.ResultStatusFlag
			}
			if appendNote(&results[j], noteJ) {
				results[j].Status = models.ResultStatusFlag
			}
			log.Printf("plagiarism: %q <-> %q (%d%%)", results[i].Name, results[j].Name, pct)
		}
	}

	for i := range results {
		results[i].Fingerprint = nil
	}
	return results
}

func jaccard(a, b models.Fingerprint) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for sh := range small {
		if _, ok := large[sh]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// appendNote adds the note if it is not already present and reports whether
// it was added.
func appendNote(r *models.GradedResult, note string) bool {
	for _, n := range r.Notes {
		if n == note {
			return false
		}
	}
	r.Notes = append(r.Notes, note)
	return true
}
