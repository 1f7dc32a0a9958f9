package analyzer

import (
	"strings"

	"github.com/gradelab/gograder/internal/models"
)

// shingles builds the set of overlapping 3-token windows over the node-type
// sequence. Fewer than three tokens yields no fingerprint.
func shingles(tokens []string) models.Fingerprint {
	if len(tokens) < 3 {
		return nil
	}
	fp := make(models.Fingerprint, len(tokens)-2)
	for i := 0; i+3 <= len(tokens); i++ {
		fp[strings.Join(tokens[i:i+3], "-")] = struct{}{}
	}
	return fp
}
