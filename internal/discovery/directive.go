package discovery

import (
	"fmt"

	"github.com/companyscope/crawler/internal/intel"
)

// listingDirective is the list-mode extraction directive used for startup
// listing pages.
func listingDirective(maxCompanies int) intel.Directive {
	instruction := fmt.Sprintf(`Extract a list of companies and their job positions from this page.
For each company, provide:
1. The company name
2. A list of their current job positions (if available)

Return the results as a list of JSON objects with this format:
{
    "index": number,
    "tags": ["company"],
    "content": [company_name],
    "jobs": [list of job positions]
}

Focus only on actual companies and their job listings mentioned on the page.
Limit the extraction to the first %d companies found.`, maxCompanies)
	return intel.Directive{
		Mode:        intel.DirectiveList,
		Instruction: instruction,
	}
}
