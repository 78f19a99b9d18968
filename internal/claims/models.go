package claims

// PolicyChunk is the unit of retrieval: a bounded span of policy document
// text with source attribution. Chunks are created in batch at document-load
// time and never mutated afterwards.
type PolicyChunk struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	SourceDocument string `json:"source_document"`
	Position       int    `json:"position"`
}

// Retrieved pairs a chunk with its similarity score for one query.
type Retrieved struct {
	Chunk PolicyChunk `json:"chunk"`
	Score float32     `json:"score"`
}

// NormalizedQuery is the canonical form of a claim description. Text holds
// the rewritten phrasing used for embedding; the extracted fields are nil
// when the raw text did not mention them.
type NormalizedQuery struct {
	RawText              string `json:"raw_text"`
	Text                 string `json:"text"`
	Age                  *int   `json:"age,omitempty"`
	Sex                  string `json:"sex,omitempty"`
	Procedure            string `json:"procedure,omitempty"`
	Location             string `json:"location,omitempty"`
	PolicyDurationMonths *int   `json:"policy_duration_months,omitempty"`
	IsEmergency          bool   `json:"is_emergency"`
}

// Verdict is the closed set of coverage outcomes. Ambiguity resolves to
// VerdictReview, never silently to approved or rejected.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
	VerdictReview   Verdict = "review"
)

// Decision is the terminal artifact returned to the caller, one per claim.
// ClauseReferences only ever name chunks that were actually retrieved for
// this claim; the engine strips anything else before the Decision leaves it.
type Decision struct {
	Decision                 Verdict  `json:"decision"`
	Amount                   *float64 `json:"amount,omitempty"`
	Justification            string   `json:"justification"`
	UserFriendlyExplanation  string   `json:"user_friendly_explanation,omitempty"`
	ClauseReferences         []string `json:"clause_references"`
	EmergencyOverride        bool     `json:"emergency_override"`
	SpecialistRecommendation string   `json:"specialist_recommendation,omitempty"`
	Confidence               float64  `json:"confidence"`
}
