package loader

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

type enexExport struct {
	Notes []struct {
		Title   string   `xml:"title"`
		Content string   `xml:"content"`
		Created string   `xml:"created"`
		Tags    []string `xml:"tag"`
	} `xml:"note"`
}

// loadEvernote reads an Evernote export and returns one document per note.
// Note bodies are ENML, which is converted as HTML.
func loadEvernote(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var export enexExport
	dec := xml.NewDecoder(f)
	// ENML bodies use HTML entities such as &nbsp;.
	dec.Strict = false
	if err := dec.Decode(&export); err != nil {
		return nil, fmt.Errorf("parse enex: %w", err)
	}

	docs := make([]schema.Document, 0, len(export.Notes))
	for _, note := range export.Notes {
		text, err := htmlToText(ctx, note.Content)
		if err != nil {
			return nil, fmt.Errorf("convert note %q: %w", note.Title, err)
		}
		meta := map[string]any{"title": note.Title}
		if note.Created != "" {
			meta["created"] = note.Created
		}
		if len(note.Tags) > 0 {
			meta["tags"] = strings.Join(note.Tags, ",")
		}
		docs = append(docs, schema.Document{PageContent: text, Metadata: meta})
	}
	return docs, nil
}
