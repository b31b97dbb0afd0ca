package service

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextBlock is a paragraph or heading of a page's text layer.
type TextBlock struct {
	Type     string `json:"type"` // "paragraph" or "heading"
	Content  string `json:"content"`
	Level    int    `json:"level"`
	Position int    `json:"position"`
}

// PageText is the structured text of one page.
type PageText struct {
	Page   int         `json:"page"`
	Blocks []TextBlock `json:"blocks"`
}

// BuildPageText splits the raw text of page into blocks. A page without
// text yields no blocks.
func BuildPageText(page int, text string) PageText {
	out := PageText{Page: page, Blocks: []TextBlock{}}
	for _, para := range splitIntoParagraphs(sanitizeText(text)) {
		block := TextBlock{Type: "paragraph", Content: para, Position: len(out.Blocks)}
		if isHeading(para) {
			block.Type = "heading"
			block.Level = 1
		}
		out.Blocks = append(out.Blocks, block)
	}
	return out
}

// splitIntoParagraphs splits on blank lines and joins wrapped lines.
func splitIntoParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var result []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para != "" {
			result = append(result, para)
		}
	}
	return result
}

// isHeading treats short lines, and short all-caps lines, as headings.
func isHeading(text string) bool {
	n := utf8.RuneCountInString(text)
	if n == 0 || n >= 100 {
		return false
	}
	if n < 50 {
		return true
	}
	return n > 3 && text == strings.ToUpper(text) && strings.IndexFunc(text, unicode.IsLetter) >= 0
}

// sanitizeText drops control characters other than whitespace and any
// invalid UTF-8 left by the OCR layer.
func sanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			continue
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
