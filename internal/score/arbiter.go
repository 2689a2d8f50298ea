package score

import (
	"math"

	"github.com/ppiankov/mathfoundry/internal/model"
)

// Tier thresholds are inclusive lower bounds, checked from high to low
const (
	HighThreshold   = 0.90
	MediumThreshold = 0.75
	LowThreshold    = 0.50
)

// OverstatedCutoff is the coverage below which a declared high or medium
// confidence is reported as overstated. It is tuned independently of the tier table.
const OverstatedCutoff = 0.75

// ConfidenceFor maps a coverage ratio to the confidence tier it justifies.
// Ratios outside [0,1] are clamped; NaN maps to insufficient_evidence.
func ConfidenceFor(ratio float64) model.Confidence {
	ratio = clamp(ratio)
	switch {
	case ratio >= HighThreshold:
		return model.ConfidenceHigh
	case ratio >= MediumThreshold:
		return model.ConfidenceMedium
	case ratio >= LowThreshold:
		return model.ConfidenceLow
	default:
		return model.ConfidenceInsufficientEvidence
	}
}

// MustAbstain reports whether a tier forces abstention
func MustAbstain(c model.Confidence) bool {
	return c == model.ConfidenceInsufficientEvidence
}

// Overstated reports whether a declared tier claims more than the coverage supports
func Overstated(declared model.Confidence, ratio float64) bool {
	if declared != model.ConfidenceHigh && declared != model.ConfidenceMedium {
		return false
	}
	return clamp(ratio) < OverstatedCutoff
}

// Coverage returns verified/total, or 0 when there is nothing to verify
func Coverage(verified, total int) float64 {
	if total <= 0 {
		return 0.0
	}
	return float64(verified) / float64(total)
}

func clamp(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return 0
	}
	return math.Max(0, math.Min(1, ratio))
}
