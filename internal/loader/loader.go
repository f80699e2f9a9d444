// Package loader turns files on disk into langchaingo documents. The loader
// is picked by lowercased file extension; unknown extensions go through a
// generic converter.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

// Metadata keys set on every loaded document.
const (
	MetaSource = "source"
	MetaLoader = "loader"
)

// Kind identifies a loader implementation.
type Kind string

const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindCSV      Kind = "csv"
	KindPDF      Kind = "pdf"
	KindHTML     Kind = "html"
	KindEmail    Kind = "email"
	KindEPub     Kind = "epub"
	KindEvernote Kind = "evernote"
	KindOffice   Kind = "office"
	KindGeneric  Kind = "generic"
)

var (
	// ErrUnsupportedFormat is returned when no loader can extract text from a file.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNotUTF8 is returned for text files that are not valid UTF-8.
	ErrNotUTF8 = errors.New("file is not valid UTF-8")

	// ErrNoText is returned when a loader succeeds but extracts only blank text.
	ErrNoText = errors.New("no text extracted")
)

var kindsByExt = map[string]Kind{
	".csv":  KindCSV,
	".doc":  KindOffice,
	".docx": KindOffice,
	".enex": KindEvernote,
	".eml":  KindEmail,
	".epub": KindEPub,
	".html": KindHTML,
	".htm":  KindHTML,
	".md":   KindMarkdown,
	".odt":  KindOffice,
	".pdf":  KindPDF,
	".ppt":  KindOffice,
	".pptx": KindOffice,
	".txt":  KindText,
}

type loadFunc func(ctx context.Context, path string) ([]schema.Document, error)

var loadFuncs = map[Kind]loadFunc{
	KindText:     loadText,
	KindMarkdown: loadMarkdown,
	KindCSV:      loadCSV,
	KindPDF:      loadPDF,
	KindHTML:     loadHTML,
	KindEmail:    loadEmail,
	KindEPub:     loadEPub,
	KindEvernote: loadEvernote,
	KindOffice:   loadOffice,
	KindGeneric:  loadGeneric,
}

// KindFor returns the loader kind for path, falling back to KindGeneric.
func KindFor(path string) Kind {
	if k, ok := kindsByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return KindGeneric
}

// IsSupported reports whether path has one of the mapped extensions.
func IsSupported(path string) bool {
	_, ok := kindsByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns the mapped extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(kindsByExt))
	for ext := range kindsByExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Load reads one file into documents. If the format loader fails, the
// generic converter is tried before giving up. Every document carries the
// path as given under MetaSource and the loader kind under MetaLoader.
func Load(ctx context.Context, path string) (docs []schema.Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("load %s: is a directory", path)
	}

	kind := KindFor(path)

	// Third-party parsers panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("load %s: %s loader panic: %v", path, kind, r)
		}
	}()

	docs, err = loadFuncs[kind](ctx, path)
	if err == nil {
		if docs = dropBlank(docs); len(docs) == 0 {
			err = ErrNoText
		}
	}
	// Plain text has nothing better to fall back to.
	if err != nil && kind != KindGeneric && kind != KindText && ctx.Err() == nil {
		fallback, ferr := loadOffice(ctx, path)
		if ferr == nil {
			fallback = dropBlank(fallback)
		}
		if ferr != nil || len(fallback) == 0 {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		docs, err, kind = fallback, nil, KindGeneric
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata[MetaSource] = path
		docs[i].Metadata[MetaLoader] = string(kind)
	}
	return docs, nil
}

func dropBlank(docs []schema.Document) []schema.Document {
	kept := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) != "" {
			kept = append(kept, d)
		}
	}
	return kept
}
