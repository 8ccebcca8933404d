package texts

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripMarkup turns a post's HTML into plain text. Line breaks survive as
// newlines, entities are decoded, runs of blanks collapse to one space and
// empty lines are dropped.
func StripMarkup(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return collapse(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapse(html)
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	doc.Find("script, style").Remove()

	return collapse(doc.Text())
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
