package browser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VisibleText reduces an HTML document to its visible text, stripped of
// script, style and navigation noise, capped at maxChars.
func VisibleText(body []byte, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var b strings.Builder
	doc.Find("title, h1, h2, h3, h4, p, li, td, th, dd, dt, blockquote, figcaption, a, span").
		Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			// Parents repeat their children's text; skip containers.
			if sel.Children().Length() > 0 && len(text) > 200 {
				return
			}
			b.WriteString(text)
			b.WriteString("\n")
		})

	text := collapseBlankLines(b.String())
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var prevBlank bool
	for _, line := range lines {
		line = strings.TrimSpace(line)
		blank := line == ""
		if blank && prevBlank {
			continue
		}
		prevBlank = blank
		if !blank {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
