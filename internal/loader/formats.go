package loader

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/raphaelgruber/privategpt-go/internal/parser"
)

func readUTF8(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	return data, nil
}

func loadText(ctx context.Context, path string) ([]schema.Document, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	return documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
}

func loadMarkdown(_ context.Context, path string) ([]schema.Document, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	md := parser.ParseMarkdown(string(data))
	meta := map[string]any{}
	if md.Title != "" {
		meta["title"] = md.Title
	}
	if tags := md.GetFrontmatterStringSlice("tags"); len(tags) > 0 {
		meta["tags"] = strings.Join(tags, ",")
	}
	return []schema.Document{{PageContent: md.Content, Metadata: meta}}, nil
}

func loadCSV(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return documentloaders.NewCSV(f).Load(ctx)
}

func loadPDF(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return documentloaders.NewPDF(f, info.Size()).Load(ctx)
}

func loadHTML(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return documentloaders.NewHTML(f).Load(ctx)
}

// loadOffice covers Word, OpenDocument and PowerPoint files through docconv.
func loadOffice(_ context.Context, path string) ([]schema.Document, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, fmt.Errorf("%w: no text extracted", ErrUnsupportedFormat)
	}
	meta := map[string]any{}
	for k, v := range res.Meta {
		if v != "" {
			meta[strings.ToLower(k)] = v
		}
	}
	return []schema.Document{{PageContent: res.Body, Metadata: meta}}, nil
}

// loadGeneric tries docconv for formats it recognises by extension and falls
// back to reading the file as UTF-8 text.
func loadGeneric(ctx context.Context, path string) ([]schema.Document, error) {
	if docconv.MimeTypeByExtension(path) != "application/octet-stream" {
		if docs, err := loadOffice(ctx, path); err == nil {
			return docs, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, ErrUnsupportedFormat
	}
	return []schema.Document{{PageContent: string(data), Metadata: map[string]any{}}}, nil
}

// htmlToText extracts the visible text of an HTML fragment. The loader's
// sanitizer escapes entities, so they are unescaped again.
func htmlToText(ctx context.Context, s string) (string, error) {
	docs, err := documentloaders.NewHTML(strings.NewReader(s)).Load(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.PageContent)
	}
	return strings.TrimSpace(html.UnescapeString(b.String())), nil
}
