package ragflow

import "unicode/utf8"

// Tunables shared by stages and gates.
const (
	// RetrievalTopK is the number of documents requested per search.
	RetrievalTopK = 5

	// CleaningThreshold is the total content length, in runes, above which
	// retrieved documents are cleaned before evaluation.
	CleaningThreshold = 10000

	// MaxReformulations bounds the reformulation loop.
	MaxReformulations = 2

	// ConfidenceThreshold is the minimum confidence for answering directly.
	ConfidenceThreshold = 5.0

	// NeutralConfidence is assumed when the scoring response is unusable.
	NeutralConfidence = 5.0

	// HighConfidence is the score at which the answer prompt affirms relevance.
	HighConfidence = 8.0

	// FineTunedMaxNewTokens caps the fine-tuned analyzer's output.
	FineTunedMaxNewTokens = 150

	// SummaryDocLimit and SummaryRuneLimit bound the document summary given
	// to the reformulator.
	SummaryDocLimit  = 3
	SummaryRuneLimit = 150
)

// TotalLength returns the combined content length of docs in runes.
func TotalLength(docs []Document) int {
	n := 0
	for _, d := range docs {
		n += utf8.RuneCountInString(d.Content)
	}
	return n
}

// RouteAfterRetrieval is the cleaning gate.
func RouteAfterRetrieval(docs []Document) Stage {
	if len(docs) == 0 {
		return Evaluating
	}
	if TotalLength(docs) > CleaningThreshold {
		return Cleaning
	}
	return Evaluating
}

// Decision is the outcome of the confidence gate with the rule that fired.
type Decision struct {
	Next Stage
	// Rule is the 1-based index of the rule that decided.
	Rule   int
	Reason string
}

// ConfidenceDecision applies the confidence gate rules in order:
//  1. confidence >= ConfidenceThreshold answers
//  2. reformulations >= MaxReformulations answers
//  3. a reformulated run with no relevant documents answers
//  4. anything else reformulates
//
// A nil confidence counts as 0.
func ConfidenceDecision(confidence *float64, reformulations int, relevant []Document) Decision {
	score := 0.0
	if confidence != nil {
		score = *confidence
	}
	switch {
	case score >= ConfidenceThreshold:
		return Decision{Next: Answering, Rule: 1, Reason: "confidence meets threshold"}
	case reformulations >= MaxReformulations:
		return Decision{Next: Answering, Rule: 2, Reason: "reformulation limit reached"}
	case reformulations > 0 && len(relevant) == 0:
		return Decision{Next: Answering, Rule: 3, Reason: "no relevant documents after reformulation"}
	default:
		return Decision{Next: Reformulating, Rule: 4, Reason: "low confidence"}
	}
}

// RouteAfterEvaluation is the confidence gate.
func RouteAfterEvaluation(confidence *float64, reformulations int, relevant []Document) Stage {
	return ConfidenceDecision(confidence, reformulations, relevant).Next
}

// RouteAfterReformulation is the reformulation gate.
func RouteAfterReformulation(reformulations int) Stage {
	if reformulations >= MaxReformulations {
		return Answering
	}
	return Retrieving
}

// State adapters for Machine.AddRoute.

func routeRetrieval(s State) Stage { return RouteAfterRetrieval(s.RetrievedDocs) }

func routeEvaluation(s State) Stage {
	return RouteAfterEvaluation(s.ConfidenceScore, s.ReformulationCount, s.RelevantDocs)
}

func routeReformulation(s State) Stage { return RouteAfterReformulation(s.ReformulationCount) }
