package extract

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/mathfoundry/internal/model"
)

// MaxPassageChars is the length at which a new passage is started
const MaxPassageChars = 900

var (
	sentenceBreak = regexp.MustCompile(`[.!?]\s+`)
	mathishToken  = regexp.MustCompile(`[\\$^_{}]|\\[a-zA-Z]+|\b[A-Z][a-zA-Z]?\b`)
)

// blockMarkers is checked in order; the first family with a hit wins
var blockMarkers = []struct {
	block   model.BlockType
	markers []string
}{
	{model.BlockTheorem, []string{"theorem", "lemma", "proposition", "corollary"}},
	{model.BlockDefinition, []string{"definition", "notion", "denote"}},
	{model.BlockProof, []string{"proof", "sketch", "argument"}},
	{model.BlockExample, []string{"example", "counterexample"}},
}

// SplitPassages cuts an abstract into sentence-aligned passages of at most
// MaxPassageChars characters (a single longer sentence stays whole)
func SplitPassages(summary, workID string) []model.Passage {
	sentences := splitSentences(summary)

	var passages []model.Passage
	emit := func(text string) {
		text = strings.TrimSpace(text)
		idx := len(passages)
		passages = append(passages, model.Passage{
			PassageID:    fmt.Sprintf("%s#p%d", workID, idx),
			WorkID:       workID,
			ChunkIndex:   idx,
			SectionLabel: model.SectionAbstract,
			BlockType:    DetectBlockType(text),
			Text:         text,
			MathDensity:  MathDensity(text),
			TokenEst:     EstimateTokens(text),
		})
	}

	current := ""
	for _, s := range sentences {
		joined := strings.TrimSpace(current + " " + s)
		if current != "" && utf8.RuneCountInString(joined) > MaxPassageChars {
			emit(current)
			current = s
			continue
		}
		current = joined
	}
	if current != "" {
		emit(current)
	}

	return passages
}

func splitSentences(text string) []string {
	var parts []string
	last := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		// keep the punctuation, drop the whitespace
		parts = appendTrimmed(parts, text[last:loc[0]+1])
		last = loc[1]
	}
	return appendTrimmed(parts, text[last:])
}

func appendTrimmed(parts []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// DetectBlockType classifies text by the first matching marker family
func DetectBlockType(text string) model.BlockType {
	lower := strings.ToLower(text)
	for _, family := range blockMarkers {
		for _, m := range family.markers {
			if strings.Contains(lower, m) {
				return family.block
			}
		}
	}
	return model.BlockParagraph
}

// MathDensity is the share of math-like tokens per character, capped at 1
// and rounded to four decimals
func MathDensity(text string) float64 {
	if text == "" {
		return 0.0
	}
	hits := len(mathishToken.FindAllStringIndex(text, -1))
	density := math.Min(1.0, float64(hits)/float64(max(1, utf8.RuneCountInString(text))))
	return math.Round(density*1e4) / 1e4
}

// EstimateTokens approximates token count by whitespace-separated words
func EstimateTokens(text string) int {
	return max(1, len(strings.Fields(text)))
}
