package browser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors must all be present for a static body to count as
// renderable without JavaScript.
var contentSelectors = []string{"body", "p"}

// Detector decides whether a statically fetched page needs a JS render.
type Detector struct {
	minHTMLBytes int
	keywords     [][]byte
}

// NewDetector constructs a detector with the configured thresholds.
func NewDetector(minBytes int, keywords []string) *Detector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		keywords:     lowered,
	}
}

// NeedsJS inspects the static body for signals that a headless render is
// required.
func (d *Detector) NeedsJS(body []byte) bool {
	switch {
	case d.bodyBelowThreshold(body):
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *Detector) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) missingSelectors(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range contentSelectors {
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
