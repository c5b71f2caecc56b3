package sop

import (
	"fmt"
	"strings"
)

// ChunkerConfig holds chunking configuration.
// Size and overlap are measured in runes. These are retrieval tuning
// parameters, not invariants.
type ChunkerConfig struct {
	// Size is the target chunk size.
	Size int

	// Overlap is how many trailing runes of a chunk are repeated at the
	// start of the next one, so a procedure step split across a boundary
	// still retrieves.
	Overlap int
}

// DefaultChunkerConfig returns the retrieval defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Size:    300,
		Overlap: 50,
	}
}

// Validate checks if the configuration is valid.
func (c ChunkerConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("Size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("Overlap must not be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("Overlap (%d) must be less than Size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunk is a retrieval-sized passage of a document, carrying the citation
// metadata returned with every search hit.
type Chunk struct {
	DocID         string
	Source        string
	SectionOrCode string
	Text          string
}

// Chunker splits documents into retrieval-sized passages.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a new Chunker with the given configuration.
// Returns an error if the configuration is invalid.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.Size == 0 {
		cfg = DefaultChunkerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: cfg}, nil
}

// NewDefaultChunker creates a Chunker with default configuration.
func NewDefaultChunker() *Chunker {
	c, err := NewChunker(DefaultChunkerConfig())
	if err != nil {
		panic(err) // defaults are known-good
	}
	return c
}

// Chunk splits a document into passages. Cuts prefer line boundaries, then
// word boundaries, falling back to a hard rune cut for unbroken text.
func (c *Chunker) Chunk(doc Document) []Chunk {
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []Chunk

	start := 0
	for start < len(runes) {
		end := start + c.config.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{
				DocID:         doc.ID,
				Source:        doc.Source,
				SectionOrCode: doc.SectionOrCode(),
				Text:          piece,
			})
		}

		if end == len(runes) {
			break
		}
		// An early boundary cut can leave this chunk shorter than the
		// overlap; skip the overlap then so the window always advances.
		next := end - c.config.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// ChunkAll chunks every document in a corpus, preserving document order.
func (c *Chunker) ChunkAll(docs []Document) []Chunk {
	var all []Chunk
	for _, doc := range docs {
		all = append(all, c.Chunk(doc)...)
	}
	return all
}

// cutPoint finds the best split position at or before limit: the last
// newline in the window, else the last space, else the hard limit.
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	// Don't scan back past half the window; a cut that early would
	// shrink chunks below useful size.
	floor := start + c.config.Size/2

	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return limit
}
