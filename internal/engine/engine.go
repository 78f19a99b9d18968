package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/internal/llm"
	"github.com/claims-agent/backend/pkg/logger"
)

// Completer is the slice of the LLM client the engine depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Engine struct {
	llm                Completer
	minEmergencyMonths int
	log                *zap.Logger
}

func New(completer Completer, minEmergencyMonths int) *Engine {
	return &Engine{
		llm:                completer,
		minEmergencyMonths: minEmergencyMonths,
		log:                logger.GetLogger(),
	}
}

// rawDecision mirrors the JSON shape the model is instructed to return.
type rawDecision struct {
	Decision                string   `json:"decision"`
	Amount                  *float64 `json:"amount"`
	Justification           string   `json:"justification"`
	UserFriendlyExplanation string   `json:"user_friendly_explanation"`
	ClauseReferences        []string `json:"clause_references"`
	EmergencyOverride       bool     `json:"emergency_override"`
}

// Evaluate produces a decision for the normalized claim. Model failures and
// unparseable responses degrade to a "review" verdict rather than an error;
// the emergency override is applied last, independent of what the model said.
func (e *Engine) Evaluate(ctx context.Context, q claims.NormalizedQuery, retrieved []claims.Retrieved) claims.Decision {
	decision := e.consultModel(ctx, q, retrieved)

	e.applyEmergencyOverride(q, &decision)
	decision.SpecialistRecommendation = recommendSpecialist(q)
	decision.Confidence = scoreConfidence(decision, retrieved)

	return decision
}

func (e *Engine) consultModel(ctx context.Context, q claims.NormalizedQuery, retrieved []claims.Retrieved) claims.Decision {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(q, retrieved),
	})
	if err != nil {
		e.log.Warn("decision model call failed, falling back to review",
			zap.Error(err))
		return reviewFallback("The automated evaluator was unavailable; a human adjuster will review this claim.")
	}

	decision, err := parseDecision(resp.Content)
	if err != nil {
		e.log.Warn("decision response failed validation, falling back to review",
			zap.Error(err),
			zap.String("content", truncate(resp.Content, 500)))
		return reviewFallback("Automated parsing of the evaluation failed; a human adjuster will review this claim.")
	}

	decision.ClauseReferences = verifyReferences(decision.ClauseReferences, retrieved)
	return decision
}

// parseDecision decodes the model output into a Decision, tolerating markdown
// code fences around the JSON and rejecting unknown verdicts.
func parseDecision(content string) (claims.Decision, error) {
	payload := stripFences(content)

	var raw rawDecision
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return claims.Decision{}, fmt.Errorf("%w: %v", claims.ErrSchemaValidation, err)
	}

	verdict := claims.Verdict(strings.ToLower(strings.TrimSpace(raw.Decision)))
	switch verdict {
	case claims.VerdictApproved, claims.VerdictRejected, claims.VerdictReview:
	default:
		return claims.Decision{}, fmt.Errorf("%w: unknown decision %q", claims.ErrSchemaValidation, raw.Decision)
	}

	if raw.Justification == "" {
		return claims.Decision{}, fmt.Errorf("%w: missing justification", claims.ErrSchemaValidation)
	}

	return claims.Decision{
		Decision:                verdict,
		Amount:                  raw.Amount,
		Justification:           raw.Justification,
		UserFriendlyExplanation: raw.UserFriendlyExplanation,
		ClauseReferences:        raw.ClauseReferences,
		EmergencyOverride:       raw.EmergencyOverride,
	}, nil
}

// stripFences peels a ```json ... ``` wrapper if present and otherwise
// extracts the outermost JSON object from surrounding prose.
func stripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// verifyReferences keeps only citations that resolve to a retrieved clause,
// matched by clause label, source document name, or a fragment of the chunk
// text. Fabricated citations are dropped silently.
func verifyReferences(refs []string, retrieved []claims.Retrieved) []string {
	if len(refs) == 0 {
		return nil
	}
	verified := make([]string, 0, len(refs))
	for _, ref := range refs {
		if referenceResolves(ref, retrieved) {
			verified = append(verified, ref)
		}
	}
	if len(verified) == 0 {
		return nil
	}
	return verified
}

var clauseNumberPattern = regexp.MustCompile(`(?i)\bclause\s*#?\s*(\d+)`)

func referenceResolves(ref string, retrieved []claims.Retrieved) bool {
	needle := strings.ToLower(strings.TrimSpace(ref))
	if needle == "" {
		return false
	}
	// A reference that names a clause number is resolved by the number
	// alone. Substring matching would let "Clause 11" pass against the
	// label "Clause 1".
	if m := clauseNumberPattern.FindStringSubmatch(needle); m != nil {
		n, err := strconv.Atoi(m[1])
		return err == nil && n >= 1 && n <= len(retrieved)
	}
	for _, r := range retrieved {
		if strings.Contains(needle, strings.ToLower(r.Chunk.SourceDocument)) {
			return true
		}
		if len(needle) >= 20 && strings.Contains(strings.ToLower(r.Chunk.Text), needle) {
			return true
		}
	}
	return false
}

// applyEmergencyOverride forces approval for emergencies on sufficiently aged
// policies. This runs after parsing so it holds even when the model response
// was rejected and the verdict fell back to review.
func (e *Engine) applyEmergencyOverride(q claims.NormalizedQuery, d *claims.Decision) {
	if !q.IsEmergency {
		return
	}
	if q.PolicyDurationMonths == nil || *q.PolicyDurationMonths < e.minEmergencyMonths {
		return
	}
	if d.Decision != claims.VerdictApproved {
		e.log.Info("emergency override applied",
			zap.String("prior_decision", string(d.Decision)),
			zap.Int("policy_months", *q.PolicyDurationMonths))
	}
	d.Decision = claims.VerdictApproved
	d.EmergencyOverride = true
	if d.Justification == "" {
		d.Justification = "Emergency treatment is covered under the policy's emergency care provisions."
	} else {
		d.Justification += " Approved under emergency care provisions."
	}
	if d.UserFriendlyExplanation == "" {
		d.UserFriendlyExplanation = "This was an emergency, so the claim is approved under your policy's emergency cover."
	}
}

func reviewFallback(explanation string) claims.Decision {
	return claims.Decision{
		Decision:                claims.VerdictReview,
		Justification:           explanation,
		UserFriendlyExplanation: "We could not decide this claim automatically, so it has been routed to a human reviewer.",
	}
}

// scoreConfidence combines verdict certainty, citation support, and retrieval
// strength into a 0..1 score.
func scoreConfidence(d claims.Decision, retrieved []claims.Retrieved) float64 {
	score := 0.5
	switch d.Decision {
	case claims.VerdictApproved, claims.VerdictRejected:
		score += 0.2
	}
	if len(d.ClauseReferences) > 0 {
		score += 0.15
	}
	if d.EmergencyOverride {
		score += 0.1
	}
	var top float32
	if len(retrieved) > 0 {
		top = retrieved[0].Score
	}
	if top > 0.8 {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// specialistByProcedure maps procedure keywords to the specialist a claimant
// should see for follow-up care.
var specialistByProcedure = []struct {
	keyword    string
	specialist string
}{
	{"cardiac", "Cardiologist"},
	{"heart", "Cardiologist"},
	{"myocardial", "Cardiologist"},
	{"knee", "Orthopedic Surgeon"},
	{"hip", "Orthopedic Surgeon"},
	{"fracture", "Orthopedic Surgeon"},
	{"spine", "Orthopedic Surgeon"},
	{"cataract", "Ophthalmologist"},
	{"eye", "Ophthalmologist"},
	{"dental", "Dental Surgeon"},
	{"tooth", "Dental Surgeon"},
	{"maternity", "Obstetrician"},
	{"pregnancy", "Obstetrician"},
	{"delivery", "Obstetrician"},
	{"cancer", "Oncologist"},
	{"tumor", "Oncologist"},
	{"chemotherapy", "Oncologist"},
	{"kidney", "Nephrologist"},
	{"dialysis", "Nephrologist"},
	{"brain", "Neurologist"},
	{"stroke", "Neurologist"},
	{"skin", "Dermatologist"},
	{"diabetes", "Endocrinologist"},
	{"appendectomy", "General Surgeon"},
	{"gallbladder", "General Surgeon"},
	{"hernia", "General Surgeon"},
}

func recommendSpecialist(q claims.NormalizedQuery) string {
	haystack := strings.ToLower(q.Procedure + " " + q.Text)
	for _, entry := range specialistByProcedure {
		if strings.Contains(haystack, entry.keyword) {
			return entry.specialist
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
