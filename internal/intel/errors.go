package intel

import "errors"

// Total-failure conditions surfaced between core components. They are
// recovered inside the orchestration (degrading to sentinel records or empty
// result sets) and never reach the request boundary as-is.
var (
	// ErrNoValidURLs means the base URL and every candidate sub-page failed
	// liveness validation.
	ErrNoValidURLs = errors.New("no valid URLs found to crawl")

	// ErrNoContent means extraction produced zero usable fragments, which is
	// distinct from a valid-but-empty company.
	ErrNoContent = errors.New("no content was successfully extracted")

	// ErrNoWebsite means the search capability could not resolve a website
	// for a company name.
	ErrNoWebsite = errors.New("no website found")
)
