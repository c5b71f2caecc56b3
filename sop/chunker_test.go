package sop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ChunkerConfig
		wantErr bool
	}{
		{"defaults", DefaultChunkerConfig(), false},
		{"zero size", ChunkerConfig{Size: 0, Overlap: 0}, true},
		{"negative overlap", ChunkerConfig{Size: 100, Overlap: -1}, true},
		{"overlap equals size", ChunkerConfig{Size: 100, Overlap: 100}, true},
		{"overlap exceeds size", ChunkerConfig{Size: 100, Overlap: 150}, true},
		{"small valid", ChunkerConfig{Size: 10, Overlap: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChunkerShortDocumentSingleChunk(t *testing.T) {
	c := NewDefaultChunker()

	doc := Document{
		ID:        "doc1",
		Source:    "SOP_Network_01.pdf",
		ErrorCode: "E-503",
		Content:   "Restart the gateway and verify upstream health.",
	}

	chunks := c.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, "doc1", chunks[0].DocID)
	assert.Equal(t, "SOP_Network_01.pdf", chunks[0].Source)
	assert.Equal(t, "E-503", chunks[0].SectionOrCode)
	assert.Equal(t, doc.Content, chunks[0].Text)
}

func TestChunkerEmptyDocument(t *testing.T) {
	c := NewDefaultChunker()
	assert.Empty(t, c.Chunk(Document{ID: "empty", Content: "   \n  "}))
}

func TestChunkerOverlapCarriesText(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Size: 40, Overlap: 10})
	require.NoError(t, err)

	// Unbroken text forces hard cuts so overlap is exact.
	content := strings.Repeat("x", 35) + strings.Repeat("y", 35) + strings.Repeat("z", 35)
	chunks := c.Chunk(Document{ID: "d", Content: content})
	require.GreaterOrEqual(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		tail := string(prev[len(prev)-10:])
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d should start with the previous chunk's last 10 runes", i)
	}
}

func TestChunkerPrefersLineBoundaries(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Size: 50, Overlap: 0})
	require.NoError(t, err)

	content := "Step 1: isolate the failing node.\nStep 2: reroute traffic through the backup VAN path.\nStep 3: confirm recovery."
	chunks := c.Chunk(Document{ID: "d", Content: content})
	require.GreaterOrEqual(t, len(chunks), 2)

	// The first cut falls inside the window after a newline, so the first
	// chunk ends exactly at the step boundary.
	assert.Equal(t, "Step 1: isolate the failing node.", chunks[0].Text)
}

func TestChunkerCoversAllText(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Size: 30, Overlap: 5})
	require.NoError(t, err)

	content := "alpha bravo charlie delta echo foxtrot golf hotel india juliett kilo lima"
	chunks := c.Chunk(Document{ID: "d", Content: content})
	require.NotEmpty(t, chunks)

	joined := ""
	for _, ch := range chunks {
		joined += " " + ch.Text
	}
	for _, word := range strings.Fields(content) {
		assert.Contains(t, joined, word)
	}
}

func TestChunkerLargeOverlapWithEarlyLineCut(t *testing.T) {
	// Overlap close to Size combined with a newline early in the window
	// makes the boundary cut land before start+Overlap. The window must
	// still move forward, not slide backwards out of range or stall.
	c, err := NewChunker(ChunkerConfig{Size: 300, Overlap: 200})
	require.NoError(t, err)

	content := strings.Repeat("a", 160) + "\n" + strings.Repeat("b", 400)
	chunks := c.Chunk(Document{ID: "d", Content: content})
	require.NotEmpty(t, chunks)

	joined := ""
	for _, ch := range chunks {
		joined += ch.Text
	}
	assert.Contains(t, joined, strings.Repeat("a", 160))
	assert.Contains(t, joined, strings.Repeat("b", 100))
	assert.Contains(t, chunks[len(chunks)-1].Text, "bbb")
}

func TestChunkerMaxValidOverlapTerminates(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Size: 10, Overlap: 9})
	require.NoError(t, err)

	content := "line one\nline two\nline three\nline four\nline five"
	chunks := c.Chunk(Document{ID: "d", Content: content})
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[len(chunks)-1].Text, "five")
}

func TestChunkAllPreservesDocumentOrder(t *testing.T) {
	c := NewDefaultChunker()

	chunks := c.ChunkAll([]Document{
		{ID: "first", Content: "first document body"},
		{ID: "second", Content: "second document body"},
	})
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].DocID)
	assert.Equal(t, "second", chunks[1].DocID)
}

func TestBuiltinCorpusCitationMetadata(t *testing.T) {
	docs := BuiltinCorpus()
	require.NotEmpty(t, docs)

	seen := make(map[string]bool)
	for _, d := range docs {
		assert.NotEmpty(t, d.ID)
		assert.NotEmpty(t, d.Source)
		assert.NotEmpty(t, d.Content)
		assert.NotEmpty(t, d.SectionOrCode(), "document %s needs a section or error code", d.ID)
		assert.False(t, seen[d.ID], "duplicate document id %s", d.ID)
		seen[d.ID] = true
	}
}
