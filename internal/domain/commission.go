package domain

import "time"

// CommissionBeneficiary identifies who a commission amount is owed to.
type CommissionBeneficiary string

const (
	BeneficiaryPlatform  CommissionBeneficiary = "platform"
	BeneficiaryEvaluator CommissionBeneficiary = "evaluator"
)

// Commission is the fee computed when an escrow contract resolves to
// Released. Each row is tied to exactly one resolved contract and one
// beneficiary.
type Commission struct {
	ID            string
	ContractID    string
	Beneficiary   CommissionBeneficiary
	BeneficiaryID string // evaluator ID, empty for the platform
	Rate          float64
	Amount        Money
	CreatedAt     time.Time
}
