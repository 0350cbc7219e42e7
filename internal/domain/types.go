package domain

// Document represents one policy document after text extraction.
type Document struct {
	ID      string
	Ref     string
	Content string
}

// Clause is a segmented unit of document text, the atomic retrievable item.
type Clause struct {
	ID         string
	DocumentID string
	Seq        int
	Text       string
}

// StructuredQuery is the normalized representation of a free-text question.
// All fields except Raw and QueryType are optional; an empty string (or nil
// Age) means the field was not extracted.
type StructuredQuery struct {
	Raw            string `json:"raw_text"`
	Age            *int   `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Procedure      string `json:"procedure,omitempty"`
	Location       string `json:"location,omitempty"`
	PolicyDuration string `json:"policy_duration,omitempty"`
	PolicyType     string `json:"policy_type,omitempty"`
	QueryType      string `json:"query_type"`
	Other          string `json:"other,omitempty"`
}

// QueryTypeGeneral is the default query type when no category keyword matched.
const QueryTypeGeneral = "general"

// ScoredClause pairs a clause with its relevance score.
type ScoredClause struct {
	Clause Clause
	Score  float64
	Source string // "vector" or "lexical"
}

const (
	ScoreSourceVector  = "vector"
	ScoreSourceLexical = "lexical"
)

// Verdict is the decision kind returned to the caller.
type Verdict string

const (
	VerdictApproved      Verdict = "APPROVED"
	VerdictRejected      Verdict = "REJECTED"
	VerdictPartial       Verdict = "PARTIAL"
	VerdictInfoNeeded    Verdict = "INFORMATION_NEEDED"
	VerdictInfoProvided  Verdict = "INFORMATION_PROVIDED"
	VerdictTimeout       Verdict = "TIMEOUT"
	VerdictErrorFallback Verdict = "ERROR_FALLBACK"
)

// KnownVerdict reports whether v is one of the verdicts a reasoning provider
// may legitimately return. TIMEOUT and ERROR_FALLBACK are reserved for the
// pipeline itself.
func KnownVerdict(v Verdict) bool {
	switch v {
	case VerdictApproved, VerdictRejected, VerdictPartial, VerdictInfoNeeded, VerdictInfoProvided:
		return true
	}
	return false
}

// Justification explains a decision and names the clauses it rests on.
type Justification struct {
	Reason     string   `json:"reason"`
	ClauseRefs []string `json:"clause_references"`
}

// Decision is the terminal artifact of answering one question.
type Decision struct {
	Verdict       Verdict       `json:"decision"`
	Amount        *float64      `json:"amount"`
	Justification Justification `json:"justification"`
}

// DocumentIndex bundles a document's clauses with the vector index built over
// them. Entries are write-once: nothing mutates a DocumentIndex after the
// build completes. HasVectors is false when embedding was unavailable at
// build time; retrieval then degrades to lexical matching.
type DocumentIndex struct {
	Document   Document
	Clauses    []Clause
	Index      Index
	Embedder   Embedder
	Dimension  int
	HasVectors bool
}
