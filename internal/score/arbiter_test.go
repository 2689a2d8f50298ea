package score

import (
	"math"
	"testing"

	"github.com/ppiankov/mathfoundry/internal/model"
)

func TestConfidenceFor_Thresholds(t *testing.T) {
	tests := []struct {
		ratio float64
		want  model.Confidence
	}{
		{1.0, model.ConfidenceHigh},
		{0.90, model.ConfidenceHigh},
		{0.8999, model.ConfidenceMedium},
		{0.75, model.ConfidenceMedium},
		{0.7499, model.ConfidenceLow},
		{0.50, model.ConfidenceLow},
		{0.4999, model.ConfidenceInsufficientEvidence},
		{0.0, model.ConfidenceInsufficientEvidence},
		{-3, model.ConfidenceInsufficientEvidence},
		{7, model.ConfidenceHigh},
		{math.NaN(), model.ConfidenceInsufficientEvidence},
	}

	for _, tt := range tests {
		if got := ConfidenceFor(tt.ratio); got != tt.want {
			t.Errorf("ConfidenceFor(%v): expected %s, got %s", tt.ratio, tt.want, got)
		}
	}
}

func TestConfidenceFor_Monotonic(t *testing.T) {
	prev := -1
	for i := 0; i <= 1000; i++ {
		rank := ConfidenceFor(float64(i) / 1000).Rank()
		if rank < prev {
			t.Fatalf("Expected non-decreasing rank at ratio %.3f, got %d after %d", float64(i)/1000, rank, prev)
		}
		prev = rank
	}
}

func TestMustAbstain(t *testing.T) {
	if !MustAbstain(model.ConfidenceInsufficientEvidence) {
		t.Error("Expected insufficient_evidence to force abstention")
	}
	for _, c := range []model.Confidence{model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh} {
		if MustAbstain(c) {
			t.Errorf("Expected %s not to force abstention", c)
		}
	}
}

func TestOverstated(t *testing.T) {
	if !Overstated(model.ConfidenceHigh, 0.5) {
		t.Error("Expected high at 0.5 to be overstated")
	}
	if !Overstated(model.ConfidenceMedium, 0.74) {
		t.Error("Expected medium at 0.74 to be overstated")
	}
	if Overstated(model.ConfidenceMedium, 0.75) {
		t.Error("Expected medium at 0.75 not to be overstated")
	}
	if Overstated(model.ConfidenceLow, 0.0) {
		t.Error("Expected low never to be overstated")
	}
	if Overstated(model.Confidence("bogus"), 0.0) {
		t.Error("Expected unrecognized tier never to be overstated")
	}
}

func TestCoverage(t *testing.T) {
	if got := Coverage(0, 0); got != 0.0 {
		t.Errorf("Expected 0.0 without claims, got %v", got)
	}
	if got := Coverage(1, 2); got != 0.5 {
		t.Errorf("Expected 0.5, got %v", got)
	}
}
