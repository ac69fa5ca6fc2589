package domain

import "time"

// EvaluationResult is the evaluator's determination for a watch.
type EvaluationResult string

const (
	EvaluationPending   EvaluationResult = "pending"
	EvaluationCertified EvaluationResult = "certified"
	EvaluationRejected  EvaluationResult = "rejected"
)

// Evaluation is one certified-evaluation attempt for a watch under escrow.
// Records are immutable once the result is set; a re-evaluation requires a
// new record.
type Evaluation struct {
	ID             string
	WatchID        string
	ContractID     string
	EvaluatorID    string
	Result         EvaluationResult
	CertificateRef string // hash of the signed evaluation report
	Notes          string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Completed reports whether a result has been recorded.
func (e Evaluation) Completed() bool {
	return e.Result != EvaluationPending
}

// EvaluatorRef identifies an accredited evaluator from the directory.
type EvaluatorRef struct {
	ID       string
	Name     string
	Category string
	Tier     string // commission-rate bucket, e.g. "standard", "master"
	Fee      Money  // flat evaluation fee paid out of the commission pool
	Active   bool
	ChainKey string
}
