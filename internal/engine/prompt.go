package engine

import (
	"fmt"
	"strings"

	"github.com/claims-agent/backend/internal/claims"
)

const systemPrompt = `You are an expert health-insurance claims evaluator.
Decide claims strictly from the policy clauses provided; never invent
coverage terms that are not in them.

Your response must be a single JSON object with exactly this shape:
{
  "decision": "approved" | "rejected" | "review",
  "amount": number or null,
  "justification": "explanation referencing the provided clauses",
  "user_friendly_explanation": "the same outcome in plain everyday language",
  "clause_references": ["labels of the clauses that influenced the decision, e.g. Clause 2"],
  "emergency_override": false
}

Rules:
1. Cite only clauses from the provided list, by their label.
2. If the clauses do not clearly support approval or rejection, answer "review".
3. Return JSON only, no other text.`

// buildUserPrompt embeds the normalized claim and the verbatim retrieved
// clauses, each under a stable label the model is told to cite.
func buildUserPrompt(q claims.NormalizedQuery, retrieved []claims.Retrieved) string {
	var b strings.Builder

	b.WriteString("CLAIM DETAILS:\n")
	fmt.Fprintf(&b, "- Original claim text: %q\n", q.RawText)
	fmt.Fprintf(&b, "- Normalized claim: %q\n", q.Text)
	if q.Age != nil {
		fmt.Fprintf(&b, "- Claimant age: %d\n", *q.Age)
	}
	if q.Procedure != "" {
		fmt.Fprintf(&b, "- Procedure: %s\n", q.Procedure)
	}
	if q.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", q.Location)
	}
	if q.PolicyDurationMonths != nil {
		fmt.Fprintf(&b, "- Policy age: %d months\n", *q.PolicyDurationMonths)
	}
	if q.IsEmergency {
		b.WriteString("- Emergency status: YES, fast-track processing\n")
	} else {
		b.WriteString("- Emergency status: no\n")
	}

	b.WriteString("\nPOLICY CLAUSES:\n")
	for i, r := range retrieved {
		fmt.Fprintf(&b, "\n%s (from %s):\n%s\n", clauseLabel(i), r.Chunk.SourceDocument, r.Chunk.Text)
	}

	b.WriteString("\nEvaluate the claim against these clauses and return the JSON decision.")

	return b.String()
}

func clauseLabel(i int) string {
	return fmt.Sprintf("Clause %d", i+1)
}
