package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"devops-rag/internal/models"
)

// RecursiveChunker splits pages with langchaingo's recursive character
// splitter, trying paragraph, line, word and character separators in turn.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
	fallback *WindowChunker
	size     int
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	fallback, err := NewWindowChunker(size, overlap)
	if err != nil {
		return nil, err
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
		fallback: fallback,
		size:     size,
	}, nil
}

func (c *RecursiveChunker) Split(pages []models.PageRecord) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		texts, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.PageIndex, err)
		}

		search := 0
		for _, text := range c.enforceSize(texts) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			offset := -1
			if idx := strings.Index(page.Text[search:], text); idx >= 0 {
				byteOffset := search + idx
				offset = utf8.RuneCountInString(page.Text[:byteOffset])
				search = byteOffset + 1
			}
			chunks = append(chunks, models.Chunk{
				Text: text,
				Metadata: models.ChunkMetadata{
					SourcePath: page.SourcePath,
					PageIndex:  page.PageIndex,
				},
				Seq:    len(chunks),
				Offset: offset,
			})
		}
	}
	return chunks, nil
}

// enforceSize re-cuts any piece longer than the chunk size with the window
// chunker.
func (c *RecursiveChunker) enforceSize(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		if utf8.RuneCountInString(text) <= c.size {
			out = append(out, text)
			continue
		}
		for _, s := range c.fallback.windows([]rune(text)) {
			out = append(out, s.text)
		}
	}
	return out
}
