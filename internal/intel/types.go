// Package intel defines core types shared across subsystems.
package intel

import "encoding/json"

// UnknownCompany is the sentinel name used when an analysis produces no data.
const UnknownCompany = "Unknown"

// CompanyRecord is the canonical output of a company analysis. It is built
// once from the fragments extracted across a company's pages and is not
// mutated afterwards, except during discovery where listing-page job data
// replaces page-scraped job data.
type CompanyRecord struct {
	CompanyName        string         `json:"company_name"`
	Website            string         `json:"website,omitempty"`
	Background         string         `json:"background"`
	Founders           []any          `json:"founders"`
	Funding            []any          `json:"funding"`
	LegalIssues        []any          `json:"legal_issues"`
	SecurityAssessment map[string]any `json:"security_assessment"`
	UserReviews        []any          `json:"user_reviews"`
	OverallSummary     string         `json:"overall_summary"`
	JobPositions       []string       `json:"job_positions"`
}

// IsSentinel reports whether the record is a failure placeholder rather than
// real company data.
func (r *CompanyRecord) IsSentinel() bool {
	return r == nil || r.CompanyName == UnknownCompany
}

// SentinelRecord builds the placeholder record returned when an analysis
// fails outright. The requested website is preserved and the failure reason
// is carried in the summary so batch callers can keep progressing.
func SentinelRecord(website, reason string) *CompanyRecord {
	return &CompanyRecord{
		CompanyName:        UnknownCompany,
		Website:            website,
		Background:         "Information not available",
		Founders:           []any{},
		Funding:            []any{},
		LegalIssues:        []any{},
		SecurityAssessment: map[string]any{},
		UserReviews:        []any{},
		OverallSummary:     "Failed to analyze company: " + reason,
		JobPositions:       []string{},
	}
}

// Fragment is one page's structured-extraction output after shape
// normalization: always a single JSON object, with any subset of
// CompanyRecord's fields present.
type Fragment map[string]any

// DirectiveMode selects how the extraction capability interprets a page.
type DirectiveMode string

// Directive modes supported by the extraction capability.
const (
	DirectiveSchema DirectiveMode = "schema"
	DirectiveList   DirectiveMode = "list"
)

// Directive tells the extraction capability what to pull out of a page.
type Directive struct {
	Mode        DirectiveMode
	Schema      json.RawMessage
	Instruction string
}

// ExtractionResult is the raw outcome of one capability invocation. Content
// may arrive as a JSON-encoded string, a single object, or a list; callers
// normalize it before use.
type ExtractionResult struct {
	Success bool
	Content any
}

// CandidateCompany is a company pulled off a listing page, before and after
// website resolution.
type CandidateCompany struct {
	CompanyName  string   `json:"company_name"`
	WebsiteURL   string   `json:"website_url,omitempty"`
	JobPositions []string `json:"job_positions"`
}

// DiscoveryResult partitions a discovery run into analyzed companies and
// candidates that could not be resolved or analyzed.
type DiscoveryResult struct {
	DiscoveredCompanies []*CompanyRecord   `json:"discovered_companies"`
	FailedCompanies     []CandidateCompany `json:"failed_companies"`
}

// SearchHit is one organic result from the search capability.
type SearchHit struct {
	Title   string `json:"title,omitempty"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResults is the subset of the search capability's response the core
// consumes.
type SearchResults struct {
	Organic []SearchHit `json:"organic"`
}
