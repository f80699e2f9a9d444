// Package parser provides text preparation for ingestion: Markdown
// frontmatter extraction and recursive character chunking.
package parser

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var h1Regex = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// MarkdownDoc represents a parsed Markdown document.
type MarkdownDoc struct {
	// Frontmatter metadata (from YAML)
	Frontmatter map[string]any

	// Title extracted from frontmatter or the first h1
	Title string

	// Body after the frontmatter block
	Content string
}

// ParseMarkdown splits an optional YAML frontmatter block off content.
// Malformed frontmatter is kept as part of the body.
func ParseMarkdown(content string) *MarkdownDoc {
	doc := &MarkdownDoc{
		Frontmatter: make(map[string]any),
		Content:     content,
	}

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if strings.HasPrefix(normalized, "---\n") {
		endIdx := strings.Index(normalized[4:], "\n---")
		if endIdx >= 0 {
			fm := make(map[string]any)
			if err := yaml.Unmarshal([]byte(normalized[4:4+endIdx]), &fm); err == nil {
				doc.Frontmatter = fm
				doc.Content = strings.TrimPrefix(normalized[4+endIdx+4:], "\n")
			}
		}
	}

	doc.Title = extractTitle(doc.Frontmatter, doc.Content)
	return doc
}

func extractTitle(fm map[string]any, content string) string {
	if title, ok := fm["title"].(string); ok && title != "" {
		return title
	}
	if match := h1Regex.FindStringSubmatch(content); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// GetFrontmatterString extracts a string from frontmatter.
func (d *MarkdownDoc) GetFrontmatterString(key string) string {
	if v, ok := d.Frontmatter[key].(string); ok {
		return v
	}
	return ""
}

// GetFrontmatterStringSlice extracts a string slice from frontmatter.
func (d *MarkdownDoc) GetFrontmatterStringSlice(key string) []string {
	switch v := d.Frontmatter[key].(type) {
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return v
	case string:
		return []string{v}
	}
	return nil
}
