package normalizer

import "regexp"

// rewrite is one canonicalization rule. Rules are held in slices, not maps,
// so application order is fixed and normalization stays deterministic.
type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// Compact age/sex shorthand like "46M" or "25F".
var ageSexPattern = regexp.MustCompile(`\b(\d{1,3})\s*([MF])\b`)

var agePatterns = []rewrite{
	{regexp.MustCompile(`(?i)\b(\d{1,3})[-\s]*(?:year|yr)s?[-\s]*old\b`), "$1-year-old"},
	{regexp.MustCompile(`(?i)\bi\s*am\s*(\d{1,3})\b`), "$1-year-old"},
	{regexp.MustCompile(`(?i)\bmy\s*age\s*is\s*(\d{1,3})\b`), "$1-year-old"},
	{regexp.MustCompile(`(?i)\bage\s*(\d{1,3})\b`), "$1-year-old"},
}

var agePhrasePattern = regexp.MustCompile(`\b(\d{1,3})-year-old\b`)

// Casual injury and condition phrasing mapped to clinical phrasing. Longer
// phrases sort first so they win over their substrings.
var medicalRewrites = []rewrite{
	{regexp.MustCompile(`(?i)\bbroke (?:my|his|her|their) arm\b`), "arm fracture"},
	{regexp.MustCompile(`(?i)\bbroke (?:my|his|her|their) leg\b`), "leg fracture"},
	{regexp.MustCompile(`(?i)\bbroke (?:my|his|her|their) hand\b`), "hand fracture"},
	{regexp.MustCompile(`(?i)\bbroke (?:my|his|her|their) wrist\b`), "wrist fracture"},
	{regexp.MustCompile(`(?i)\bbroke (?:my|his|her|their) hip\b`), "hip fracture"},
	{regexp.MustCompile(`(?i)\btwisted (?:my|his|her|their) ankle\b`), "ankle sprain"},
	{regexp.MustCompile(`(?i)\bhurt (?:my|his|her|their) back\b`), "back injury"},
	{regexp.MustCompile(`(?i)\btorn muscle\b`), "muscle tear"},
	{regexp.MustCompile(`(?i)\bpulled muscle\b`), "muscle strain"},
	{regexp.MustCompile(`(?i)\bcut (?:myself|himself|herself|themselves)\b`), "laceration"},
	{regexp.MustCompile(`(?i)\bfell down\b`), "fall injury"},
	{regexp.MustCompile(`(?i)\bcar accident\b`), "motor vehicle accident"},
	{regexp.MustCompile(`(?i)\bbike accident\b`), "bicycle accident"},
	{regexp.MustCompile(`(?i)\bsports injury\b`), "athletic injury"},
	{regexp.MustCompile(`(?i)\bheart attack\b`), "myocardial infarction"},
	{regexp.MustCompile(`(?i)\bstroke\b`), "cerebrovascular accident"},
	{regexp.MustCompile(`(?i)\bhigh blood pressure\b`), "hypertension"},
	{regexp.MustCompile(`(?i)\bcan'?t breathe\b`), "respiratory distress"},
	{regexp.MustCompile(`(?i)\bthrowing up\b`), "vomiting"},
	{regexp.MustCompile(`(?i)\bblood test\b`), "laboratory tests"},
	{regexp.MustCompile(`(?i)\boperation\b`), "surgery"},
	{regexp.MustCompile(`(?i)\bstitches\b`), "sutures"},
	{regexp.MustCompile(`(?i)\bx-ray\b`), "radiography"},
	{regexp.MustCompile(`(?i)\bcheckup\b`), "examination"},
	{regexp.MustCompile(`(?i)\bpills\b`), "medication"},
	{regexp.MustCompile(`(?i)\bmedicine\b`), "medication"},
}

var familyRewrites = []rewrite{
	{regexp.MustCompile(`(?i)\bmy (?:kid|son|daughter)\b`), "child"},
	{regexp.MustCompile(`(?i)\bmy baby\b`), "infant"},
	{regexp.MustCompile(`(?i)\bmy (?:mom|dad|mother|father)\b`), "parent"},
	{regexp.MustCompile(`(?i)\bmy (?:wife|husband)\b`), "spouse"},
	{regexp.MustCompile(`(?i)\bmy (?:grandma|grandpa|grandmother|grandfather)\b`), "elderly family member"},
}

// Policy-duration phrasing. The numeric patterns also feed duration
// extraction; the vague ones map to fixed assumed durations.
var policyMonthPattern = regexp.MustCompile(`(?i)\b(\d+)[-\s]*month(?:s)?(?:[-\s]*old)?[-\s]*(?:policy|insurance)\b`)
var policyYearPattern = regexp.MustCompile(`(?i)\b(\d+)[-\s]*year(?:s)?(?:[-\s]*old)?[-\s]*(?:policy|insurance)\b`)
var insuranceForMonthsPattern = regexp.MustCompile(`(?i)\b(?:had\s+)?insurance\s+for\s+(\d+)\s+months?\b`)
var insuranceForYearsPattern = regexp.MustCompile(`(?i)\b(?:had\s+)?insurance\s+for\s+(\d+)\s+years?\b`)
var policyAgeMonthsPattern = regexp.MustCompile(`(?i)\bpolicy\s+is\s+(\d+)\s+months?\s+old\b`)
var policyAgeYearsPattern = regexp.MustCompile(`(?i)\bpolicy\s+is\s+(\d+)\s+years?\s+old\b`)

var vaguePolicyDurations = []struct {
	pattern *regexp.Regexp
	months  int
}{
	{regexp.MustCompile(`(?i)\bnew\s+(?:policy|insurance)\b`), 1},
	{regexp.MustCompile(`(?i)\brecent\s+(?:policy|insurance)\b`), 3},
	{regexp.MustCompile(`(?i)\bold\s+(?:policy|insurance)\b`), 60},
}

// Urgent-condition keyword set driving the emergency flag. Matching any one
// of these marks the claim for fast-track handling downstream.
var emergencyKeywords = []string{
	"emergency",
	"urgent",
	"ambulance",
	"emergency room",
	"er visit",
	"rushed to",
	"immediately",
	"couldn't wait",
	"life threatening",
	"severe pain",
	"intense pain",
	"unbearable",
	"critical",
	"unconscious",
	"myocardial infarction",
	"cerebrovascular accident",
	"respiratory distress",
}

// Known claim locations, checked as whole words against the lowered text.
var knownCities = []string{
	"pune", "mumbai", "delhi", "bangalore", "chennai", "hyderabad",
	"kolkata", "ahmedabad", "jaipur", "lucknow", "kanpur", "nagpur",
}

// Procedure classification, most specific keyword first.
var procedureKeywords = []struct {
	keyword   string
	procedure string
}{
	{"knee", "knee surgery"},
	{"cardiac", "cardiac procedure"},
	{"myocardial", "cardiac procedure"},
	{"heart", "cardiac procedure"},
	{"cancer", "cancer treatment"},
	{"diabetes", "diabetes management"},
	{"kidney", "kidney treatment"},
	{"liver", "liver treatment"},
	{"pregnancy", "maternity care"},
	{"maternity", "maternity care"},
	{"fracture", "fracture treatment"},
	{"sprain", "sprain treatment"},
	{"laceration", "wound treatment"},
	{"cataract", "cataract surgery"},
	{"dental", "dental treatment"},
	{"appendix", "appendectomy"},
	{"surgery", "surgical procedure"},
	{"accident", "accident treatment"},
}
