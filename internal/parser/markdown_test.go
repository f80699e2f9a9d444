package parser

import (
	"testing"
)

func TestParseMarkdown(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantTitle   string
		wantContent string
		wantTags    []string
	}{
		{
			name:        "no frontmatter",
			content:     "# Handbook\n\nBody text.",
			wantTitle:   "Handbook",
			wantContent: "# Handbook\n\nBody text.",
		},
		{
			name:        "frontmatter title wins",
			content:     "---\ntitle: Onboarding\ntags: [hr, policy]\n---\n# Other\n\nWelcome.",
			wantTitle:   "Onboarding",
			wantContent: "# Other\n\nWelcome.",
			wantTags:    []string{"hr", "policy"},
		},
		{
			name:        "windows line endings",
			content:     "---\r\ntags: solo\r\n---\r\nplain body",
			wantContent: "plain body",
			wantTags:    []string{"solo"},
		},
		{
			name:        "unterminated frontmatter is body",
			content:     "---\ntitle: broken\nno close",
			wantContent: "---\ntitle: broken\nno close",
		},
		{
			name:        "invalid yaml is body",
			content:     "---\ntitle: [unclosed\n---\ntext",
			wantContent: "---\ntitle: [unclosed\n---\ntext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := ParseMarkdown(tt.content)
			if doc.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", doc.Title, tt.wantTitle)
			}
			if doc.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", doc.Content, tt.wantContent)
			}
			got := doc.GetFrontmatterStringSlice("tags")
			if len(got) != len(tt.wantTags) {
				t.Fatalf("tags = %v, want %v", got, tt.wantTags)
			}
			for i := range got {
				if got[i] != tt.wantTags[i] {
					t.Errorf("tags[%d] = %q, want %q", i, got[i], tt.wantTags[i])
				}
			}
		})
	}
}
