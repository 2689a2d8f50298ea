package extract

import (
	"slices"
	"testing"
)

func TestDetectSubareas_Moduli(t *testing.T) {
	tags := DetectSubareas("We study moduli stacks of stable maps and geometric invariant theory quotients.", 3)
	if !slices.Contains(tags, "moduli_and_stacks") {
		t.Errorf("Expected moduli_and_stacks, got %v", tags)
	}
	if tags[0] != "moduli_and_stacks" {
		t.Errorf("Expected moduli_and_stacks ranked first, got %v", tags)
	}
}

func TestDetectSubareas_Derived(t *testing.T) {
	tags := DetectSubareas("Derived categories, t-structures, and stability conditions in algebraic geometry.", 3)
	if !slices.Contains(tags, "derived_and_homological_ag") {
		t.Errorf("Expected derived_and_homological_ag, got %v", tags)
	}
}

func TestDetectSubareas_Limit(t *testing.T) {
	text := "moduli stack; derived category; étale cohomology sheaf; toric polytope; birational flip"
	if tags := DetectSubareas(text, 2); len(tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", tags)
	}
	if tags := DetectSubareas(text, 0); len(tags) != DefaultMaxSubareas {
		t.Errorf("Expected default of %d tags, got %v", DefaultMaxSubareas, tags)
	}
}

func TestDetectSubareas_None(t *testing.T) {
	if tags := DetectSubareas("Lorem ipsum.", 3); len(tags) != 0 {
		t.Errorf("Expected no tags, got %v", tags)
	}
}

func TestSubareasFor(t *testing.T) {
	if tags := SubareasFor("math.NT", "Moduli of curves", ""); tags != nil {
		t.Errorf("Expected no tags outside math.AG, got %v", tags)
	}
	if tags := SubareasFor(CategoryAG, "Toric varieties", "Polytopes and fans."); len(tags) == 0 || tags[0] != "toric_and_tropical" {
		t.Errorf("Expected toric_and_tropical, got %v", tags)
	}
}
