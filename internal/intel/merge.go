package intel

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// textSeparator joins per-fragment text contributions with a blank line.
const textSeparator = "\n\n"

// Merge combines the fragments extracted from a company's pages into one
// record. Fragment order must be submission order: first non-empty wins for
// identity fields, text fields concatenate in order, list fields dedupe by
// structural equality preserving first occurrence, security assessments merge
// key-by-key with one level of map recursion, and job positions union into a
// sorted set. An empty input is a total failure, not an empty company.
func Merge(fragments []Fragment) (*CompanyRecord, error) {
	if len(fragments) == 0 {
		return nil, ErrNoContent
	}

	name := firstString(fragments, "company_name")
	if name == "" {
		name = UnknownCompany
	}

	return &CompanyRecord{
		CompanyName:        name,
		Background:         joinText(fragments, "background"),
		Founders:           mergeLists(fragments, "founders"),
		Funding:            mergeLists(fragments, "funding"),
		LegalIssues:        mergeLists(fragments, "legal_issues"),
		SecurityAssessment: mergeAssessments(fragments),
		UserReviews:        mergeLists(fragments, "user_reviews"),
		OverallSummary:     joinText(fragments, "overall_summary"),
		JobPositions:       mergeJobPositions(fragments),
	}, nil
}

func firstString(fragments []Fragment, key string) string {
	for _, frag := range fragments {
		if s, ok := frag[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func joinText(fragments []Fragment, key string) string {
	parts := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		if s, ok := frag[key].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, textSeparator)
}

// mergeLists concatenates the named list across fragments and dedupes items.
// Object items compare by their sorted-key JSON serialization, scalars by
// string form.
func mergeLists(fragments []Fragment, key string) []any {
	result := []any{}
	seen := map[string]struct{}{}
	for _, frag := range fragments {
		items, ok := frag[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			id := itemIdentity(item)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, item)
		}
	}
	return result
}

func itemIdentity(item any) string {
	if m, ok := item.(map[string]any); ok {
		// encoding/json serializes map keys in sorted order, which makes the
		// identity insensitive to key insertion order.
		if data, err := json.Marshal(m); err == nil {
			return "obj:" + string(data)
		}
	}
	return "str:" + fmt.Sprintf("%v", item)
}

func mergeAssessments(fragments []Fragment) map[string]any {
	merged := map[string]any{}
	for _, frag := range fragments {
		assessment, ok := frag["security_assessment"].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range assessment {
			existing, present := merged[k]
			if !present {
				merged[k] = v
				continue
			}
			incoming, incomingIsMap := v.(map[string]any)
			current, currentIsMap := existing.(map[string]any)
			if incomingIsMap && currentIsMap {
				for ik, iv := range incoming {
					current[ik] = iv
				}
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// mergeJobPositions unions job titles across fragments. Dedup is plain string
// equality: "Engineer" and "engineer" stay distinct.
func mergeJobPositions(fragments []Fragment) []string {
	set := map[string]struct{}{}
	for _, frag := range fragments {
		jobs, ok := frag["job_positions"].([]any)
		if !ok {
			continue
		}
		for _, job := range jobs {
			if job == nil {
				continue
			}
			s := fmt.Sprintf("%v", job)
			if s == "" {
				continue
			}
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for job := range set {
		out = append(out, job)
	}
	sort.Strings(out)
	return out
}
