package model

// Paper is one indexed arXiv work
type Paper struct {
	WorkID     string   `json:"work_id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Category   string   `json:"category,omitempty"`    // First math.* category term
	AGSubareas []string `json:"ag_subareas,omitempty"` // Keyword-derived sub-area tags (math.AG only)
	Published  string   `json:"published,omitempty"`
	Updated    string   `json:"updated,omitempty"`
	SourceFile string   `json:"source_file,omitempty"` // Raw file the paper was indexed from
}

// Passage is a chunk of a paper's abstract with lightweight math metadata
type Passage struct {
	PassageID    string    `json:"passage_id"` // "<work_id>#p<chunk_index>"
	WorkID       string    `json:"work_id"`
	ChunkIndex   int       `json:"chunk_index"`
	SectionLabel string    `json:"section_label"`
	BlockType    BlockType `json:"block_type"`
	Text         string    `json:"text"`
	MathDensity  float64   `json:"math_density"` // Share of math-like tokens, in [0,1]
	TokenEst     int       `json:"token_est"`
}

// BlockType classifies the mathematical role of a passage
type BlockType string

const (
	BlockTheorem    BlockType = "theorem"
	BlockDefinition BlockType = "definition"
	BlockProof      BlockType = "proof"
	BlockExample    BlockType = "example"
	BlockParagraph  BlockType = "paragraph"
)

// SectionAbstract is the section label of passages cut from an abstract
const SectionAbstract = "abstract"
