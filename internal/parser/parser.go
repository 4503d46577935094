package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"devops-rag/internal/models"
)

// Loader turns a source document into ordered page records.
type Loader interface {
	Load(ctx context.Context, path string) ([]models.PageRecord, error)
}

// pageParser extracts the text of every page of a file, in page order.
type pageParser func(path string) ([]string, error)

// FileLoader reads local documents and picks a parser by file extension.
type FileLoader struct {
	parsers map[string]pageParser
}

func NewFileLoader() *FileLoader {
	return &FileLoader{
		parsers: map[string]pageParser{
			".pdf":  parsePDF,
			".txt":  parseText,
			".md":   parseMarkdown,
			".docx": parseDOCX,
			".pptx": parsePPTX,
			".xlsx": parseXLSX,
			".xlsm": parseWorkbook,
			".xltx": parseWorkbook,
			".xltm": parseWorkbook,
		},
	}
}

// SupportedExtensions lists the extensions Load understands.
func (l *FileLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.parsers))
	for ext := range l.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (l *FileLoader) Load(ctx context.Context, path string) ([]models.PageRecord, error) {
	const op = "load document"

	if err := ctx.Err(); err != nil {
		return nil, models.NewError(models.KindParse, op, err)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, models.Errorf(models.KindNotFound, op, "document not found: %s", path)
	}
	if err != nil {
		return nil, models.NewError(models.KindParse, op, err)
	}
	if info.IsDir() {
		return nil, models.Errorf(models.KindParse, op, "%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	parse, ok := l.parsers[ext]
	if !ok {
		return nil, models.Errorf(models.KindParse, op, "unsupported file format %q, want one of %s", ext, strings.Join(l.SupportedExtensions(), ", "))
	}

	texts, err := parse(path)
	if err != nil {
		return nil, models.NewError(models.KindParse, op, fmt.Errorf("failed to parse %s: %w", path, err))
	}

	pages := make([]models.PageRecord, len(texts))
	empty := true
	for i, text := range texts {
		pages[i] = models.PageRecord{
			Text:       text,
			PageIndex:  i + 1,
			SourcePath: path,
		}
		if strings.TrimSpace(text) != "" {
			empty = false
		}
	}
	if empty {
		return nil, models.Errorf(models.KindParse, op, "no extractable text in %s", path)
	}

	log.Ctx(ctx).Debug().Str("path", path).Int("pages", len(pages)).Msg("Loaded document")
	return pages, nil
}
