package engine

import (
	"strings"

	"github.com/claims-agent/backend/internal/claims"
)

// fastPathEntry is a pre-decided outcome for a claim pattern common enough
// that a model round-trip adds nothing. Entries match when every keyword
// appears in the normalized claim text.
type fastPathEntry struct {
	keywords      []string
	decision      claims.Verdict
	justification string
	explanation   string
}

var fastPathTable = []fastPathEntry{
	{
		keywords:      []string{"dental", "cosmetic"},
		decision:      claims.VerdictRejected,
		justification: "Cosmetic dental procedures are excluded from coverage under standard policy exclusions.",
		explanation:   "Cosmetic dental work is not covered by your policy.",
	},
	{
		keywords:      []string{"cosmetic", "surgery"},
		decision:      claims.VerdictRejected,
		justification: "Cosmetic surgery is excluded from coverage unless medically necessary due to accident or illness.",
		explanation:   "Cosmetic surgery is not covered unless it is medically required.",
	},
	{
		// "checkup" is already rewritten to "examination" upstream
		keywords:      []string{"health", "examination"},
		decision:      claims.VerdictApproved,
		justification: "Preventive health examinations are covered under the wellness benefit of the policy.",
		explanation:   "Routine health checkups are covered by your policy's wellness benefit.",
	},
	{
		keywords:      []string{"vaccination"},
		decision:      claims.VerdictApproved,
		justification: "Vaccinations are covered under the preventive care benefit of the policy.",
		explanation:   "Vaccinations are covered under preventive care.",
	},
	{
		keywords:      []string{"ambulance"},
		decision:      claims.VerdictApproved,
		justification: "Ambulance charges for hospitalization are covered under the policy's transport benefit.",
		explanation:   "Ambulance costs for a hospital admission are covered.",
	},
}

// FastPath returns a canned decision for well-known claim patterns, or false
// when the claim needs full evaluation. Emergencies always take the full
// path so the override logic sees them.
func FastPath(q claims.NormalizedQuery) (claims.Decision, bool) {
	if q.IsEmergency {
		return claims.Decision{}, false
	}
	haystack := strings.ToLower(q.Text)
	for _, entry := range fastPathTable {
		if matchesAll(haystack, entry.keywords) {
			return claims.Decision{
				Decision:                entry.decision,
				Justification:           entry.justification,
				UserFriendlyExplanation: entry.explanation,
				Confidence:              0.85,
			}, true
		}
	}
	return claims.Decision{}, false
}

func matchesAll(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}
