// Package normalizer canonicalizes casual claim phrasing into the structured
// query the rest of the pipeline works with. It is pure table-driven text
// substitution: no model calls, no state, same input always yields the same
// output.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/claims-agent/backend/internal/claims"
)

type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// Normalize maps raw claim text to its canonical form. Rewrites run in a
// fixed order: age/sex shorthand, age phrases, medical terms, family
// references, policy duration. Extraction reads the rewritten text so the
// structured fields agree with it.
func (n *Normalizer) Normalize(rawText string) claims.NormalizedQuery {
	q := claims.NormalizedQuery{RawText: rawText}

	text := strings.TrimSpace(rawText)

	text, age, sex := expandAgeSex(text)
	q.Sex = sex

	for _, r := range agePatterns {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	if age == nil {
		age = extractAge(text)
	}
	q.Age = age

	for _, r := range medicalRewrites {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	for _, r := range familyRewrites {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}

	q.PolicyDurationMonths = extractPolicyMonths(text)
	q.IsEmergency = detectEmergency(text)
	q.Location = detectLocation(text)
	q.Procedure = detectProcedure(text)

	q.Text = enhance(text, q.IsEmergency)
	return q
}

func expandAgeSex(text string) (string, *int, string) {
	m := ageSexPattern.FindStringSubmatch(text)
	if m == nil {
		return text, nil, ""
	}

	age, err := strconv.Atoi(m[1])
	if err != nil {
		return text, nil, ""
	}

	sex := "male"
	if m[2] == "F" {
		sex = "female"
	}

	expanded := ageSexPattern.ReplaceAllString(text, "$1-year-old "+sex)
	return expanded, &age, sex
}

func extractAge(text string) *int {
	m := agePhrasePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	age, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &age
}

func extractPolicyMonths(text string) *int {
	monthPatterns := []*regexp.Regexp{policyMonthPattern, insuranceForMonthsPattern, policyAgeMonthsPattern}
	for _, p := range monthPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if months, err := strconv.Atoi(m[1]); err == nil {
				return &months
			}
		}
	}

	yearPatterns := []*regexp.Regexp{policyYearPattern, insuranceForYearsPattern, policyAgeYearsPattern}
	for _, p := range yearPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if years, err := strconv.Atoi(m[1]); err == nil {
				months := years * 12
				return &months
			}
		}
	}

	for _, vague := range vaguePolicyDurations {
		if vague.pattern.MatchString(text) {
			months := vague.months
			return &months
		}
	}

	return nil
}

func detectEmergency(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range emergencyKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func detectLocation(text string) string {
	lower := strings.ToLower(text)
	for _, city := range knownCities {
		if containsWord(lower, city) {
			return strings.ToUpper(city[:1]) + city[1:]
		}
	}
	return ""
}

func detectProcedure(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range procedureKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.procedure
		}
	}
	return ""
}

// enhance prepends retrieval hints that sharpen the embedding without
// changing the claim's meaning.
func enhance(text string, isEmergency bool) string {
	enhanced := text

	lower := strings.ToLower(enhanced)
	if strings.Contains(lower, "surgery") || strings.Contains(lower, "treatment") {
		enhanced = "Medically necessary " + enhanced
	}
	if isEmergency {
		enhanced = "EMERGENCY: " + enhanced
	}

	return enhanced
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isAlnum(text[start-1])
		afterOK := end == len(text) || !isAlnum(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
