package analyzer

import (
	"encoding/json"
	"strings"

	"github.com/companyscope/crawler/internal/intel"
)

// commonPositions steers job-title extraction toward the roles that show up
// on AI and Web3 career pages.
var commonPositions = []string{
	"Software Engineer", "Senior Software Engineer", "Full Stack Engineer",
	"Backend Engineer", "Frontend Engineer", "DevOps Engineer",
	"Machine Learning Engineer", "AI Engineer", "Data Engineer",
	"Blockchain Engineer", "Smart Contract Developer", "Protocol Engineer",
	"Site Reliability Engineer", "Infrastructure Engineer",
	"AI Researcher", "Machine Learning Scientist", "Data Scientist",
	"NLP Engineer", "Computer Vision Engineer", "AI Product Manager",
	"Research Scientist", "Applied Scientist",
	"Blockchain Developer", "Solidity Developer", "Web3 Engineer",
	"DeFi Engineer", "Token Economics Researcher", "Crypto Research Analyst",
	"Smart Contract Auditor", "Web3 Security Engineer",
	"Product Manager", "Product Designer", "UX Designer",
	"UI Designer", "Technical Product Manager", "Product Owner",
	"Engineering Manager", "Technical Lead", "CTO",
	"VP of Engineering", "Director of Engineering",
	"Head of AI", "Head of Blockchain", "Technical Director",
	"Business Development", "Operations Manager",
	"Community Manager", "Growth Manager", "Technical Writer",
	"Developer Advocate", "Developer Relations",
	"Security Engineer", "QA Engineer", "Test Engineer",
	"Security Researcher", "Penetration Tester",
	"Data Analyst", "Analytics Engineer", "Business Intelligence Analyst",
	"Data Architect", "Database Engineer",
	"Research Engineer", "Innovation Lead", "Technical Researcher",
	"Cryptography Researcher", "Protocol Researcher",
}

// recordSchema is the JSON schema handed to the extraction capability so
// every page fragment arrives shaped like a CompanyRecord subset.
var recordSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "company_name": {"type": "string"},
    "website": {"type": "string"},
    "background": {"type": "string"},
    "founders": {"type": "array", "items": {"type": "object"}},
    "funding": {"type": "array", "items": {"type": "object"}},
    "legal_issues": {"type": "array", "items": {"type": "object"}},
    "security_assessment": {"type": "object"},
    "user_reviews": {"type": "array"},
    "overall_summary": {"type": "string"},
    "job_positions": {"type": "array", "items": {"type": "string"}}
  }
}`)

// CompanyDirective is the schema-mode extraction directive used for every
// page of a company analysis.
func CompanyDirective() intel.Directive {
	positions, _ := json.MarshalIndent(commonPositions, "", "  ")
	instruction := strings.Join([]string{
		"You are an expert analyst specializing in company research. Analyze all the provided content and extract:",
		"1. Company background and history",
		"2. Founders' information and their backgrounds",
		"3. Funding rounds and investment details",
		"4. Legal issues and disputes",
		"5. Security risks and vulnerabilities",
		"6. User reviews and feedback",
		"7. Job positions: for careers or jobs pages, extract ONLY the job titles of current openings.",
		"   Match titles against this list of common positions when possible, include other positions if clearly stated, normalize titles, remove duplicates:",
		string(positions),
		"Return the information in the specified JSON schema format. For job_positions, return a simple array of strings containing only the job titles.",
	}, "\n")
	return intel.Directive{
		Mode:        intel.DirectiveSchema,
		Schema:      recordSchema,
		Instruction: instruction,
	}
}
