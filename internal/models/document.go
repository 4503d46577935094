package models

import "fmt"

// PageRecord is the text of one physical page of the source document.
type PageRecord struct {
	Text       string `json:"text"`
	PageIndex  int    `json:"page_index"`
	SourcePath string `json:"source_path"`
}

// ChunkMetadata ties a chunk back to the page it was cut from.
type ChunkMetadata struct {
	SourcePath string `json:"source_path"`
	PageIndex  int    `json:"page_index"`
}

// Chunk is the unit of retrieval.
//
// Seq is the position of the chunk in the chunker output and doubles as the
// tie-break key for equal similarity scores. Offset is the rune offset of
// Text inside its page, or -1 when the splitter cannot report it.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Seq      int           `json:"seq"`
	Offset   int           `json:"offset"`
}

// ChunkKey identifies a text span of a page.
type ChunkKey struct {
	SourcePath string
	PageIndex  int
	Offset     int
	Text       string
}

func (c Chunk) Key() ChunkKey {
	return ChunkKey{
		SourcePath: c.Metadata.SourcePath,
		PageIndex:  c.Metadata.PageIndex,
		Offset:     c.Offset,
		Text:       c.Text,
	}
}

// ID is the identifier used by vector stores.
func (c Chunk) ID() string {
	return fmt.Sprintf("chunk-%06d", c.Seq)
}

// ScoredChunk is a search hit with its cosine similarity.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
