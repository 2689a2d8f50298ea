package extract

import (
	"slices"
	"strings"
)

// CategoryAG is the arXiv category whose papers get sub-area tags
const CategoryAG = "math.AG"

// DefaultMaxSubareas is the number of tags kept per paper
const DefaultMaxSubareas = 3

// agSubareas lists keyword families in tie-break order
var agSubareas = []struct {
	tag      string
	keywords []string
}{
	{"birational_geometry_mmp", []string{"birational", "minimal model", "mmp", "log canonical", "klt", "flip", "fano"}},
	{"moduli_and_stacks", []string{"moduli", "stack", "stable map", "hilbert scheme", "quot scheme"}},
	{"derived_and_homological_ag", []string{"derived", "dg", "triangulated", "derived category", "t-structure", "stability condition"}},
	{"arithmetic_geometry", []string{"diophantine", "number field", "arithmetic", "height", "l-function", "galois representation"}},
	{"cohomology_and_sheaves", []string{"etale", "étale", "cohomology", "sheaf", "de rham", "crystalline", "perverse"}},
	{"singularities", []string{"singularity", "resolution", "multiplier ideal", "log resolution"}},
	{"enumerative_and_intersection", []string{"gromov-witten", "enumerative", "intersection", "donaldson-thomas", "curve counting"}},
	{"abelian_k3_calabi_yau", []string{"abelian variety", "k3", "calabi-yau", "hyperkahler", "holomorphic symplectic"}},
	{"toric_and_tropical", []string{"toric", "fan", "polytope", "tropical"}},
	{"geometric_invariant_theory", []string{"git", "geometric invariant theory", "stability", "quotient"}},
}

// DetectSubareas tags text with up to maxTags algebraic-geometry sub-areas,
// ranked by the number of matching keywords
func DetectSubareas(text string, maxTags int) []string {
	if maxTags <= 0 {
		maxTags = DefaultMaxSubareas
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")

	type scored struct {
		tag   string
		score int
	}
	var hits []scored
	for _, area := range agSubareas {
		n := 0
		for _, kw := range area.keywords {
			if strings.Contains(normalized, kw) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{area.tag, n})
		}
	}

	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })

	tags := make([]string, 0, min(maxTags, len(hits)))
	for i := 0; i < len(hits) && i < maxTags; i++ {
		tags = append(tags, hits[i].tag)
	}
	return tags
}

// SubareasFor returns the sub-area tags of a paper in the given category
func SubareasFor(category, title, summary string) []string {
	if category != CategoryAG {
		return nil
	}
	return DetectSubareas(title+" "+summary, DefaultMaxSubareas)
}
