package chunker

import (
	"fmt"
	"unicode"

	"devops-rag/internal/config"
	"devops-rag/internal/models"
)

// Chunker splits page records into overlapping chunks.
type Chunker interface {
	Split(pages []models.PageRecord) ([]models.Chunk, error)
}

// New returns the chunker selected by cfg.Chunker.
func New(cfg config.RAGConfig) (Chunker, error) {
	switch cfg.Chunker {
	case config.ChunkerWindow, "":
		return NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	case config.ChunkerRecursive:
		return NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	default:
		return nil, fmt.Errorf("unsupported chunker: %q", cfg.Chunker)
	}
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("chunk overlap must be >= 0 and < chunk size (%d), got %d", size, overlap)
	}
	return nil
}

// WindowChunker cuts each page into windows of at most size runes. A window
// ends at the last paragraph, line, sentence or word boundary in its back
// half, or at a hard cut when there is none. The next window starts overlap
// runes before the previous end, moved forward to a word start if one exists
// before that end.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

func (c *WindowChunker) Split(pages []models.PageRecord) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, s := range c.windows([]rune(page.Text)) {
			chunks = append(chunks, models.Chunk{
				Text: s.text,
				Metadata: models.ChunkMetadata{
					SourcePath: page.SourcePath,
					PageIndex:  page.PageIndex,
				},
				Seq:    len(chunks),
				Offset: s.offset,
			})
		}
	}
	return chunks, nil
}

type span struct {
	offset int
	text   string
}

func (c *WindowChunker) windows(runes []rune) []span {
	var spans []span
	n := len(runes)
	start := 0
	for start < n {
		end := min(start+c.size, n)
		if end < n {
			end = c.breakPoint(runes, start, end)
		}
		if s, ok := trimSpan(runes, start, end); ok {
			spans = append(spans, s)
		}
		if end >= n {
			break
		}

		next := alignStart(runes, end-c.overlap, end)
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans
}

// breakPoint picks the end of the window [start, end). Candidates lie in the
// back half of the window and always past start+overlap, so every window
// advances the next start.
func (c *WindowChunker) breakPoint(runes []rune, start, end int) int {
	floor := start + max(c.size/2, c.overlap+1)
	if floor >= end {
		return end
	}

	// paragraph
	for i := end - 2; i >= floor; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}
	// line
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	// sentence
	for i := end - 2; i >= floor; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				return i + 1
			}
		}
	}
	// word
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

// alignStart moves pos forward to the start of the next word, staying before
// limit so the new window still touches the previous one.
func alignStart(runes []rune, pos, limit int) int {
	if pos <= 0 {
		return 0
	}
	if unicode.IsSpace(runes[pos-1]) || unicode.IsSpace(runes[pos]) {
		return pos
	}
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return pos
}

func trimSpan(runes []rune, start, end int) (span, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return span{}, false
	}
	return span{offset: start, text: string(runes[start:end])}, true
}
