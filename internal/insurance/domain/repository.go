package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentTotals is the aggregate delta applied after a winning payment insert.
type PaymentTotals struct {
	PayerID   snowflake.ID
	Amount    decimal.Decimal
	PaidAt    time.Time
	UpdatedAt time.Time
}

// ClaimSubmission carries the fields written by a claim-submitted event.
type ClaimSubmission struct {
	ID          snowflake.ID
	ClaimID     string
	PayerID     snowflake.ID
	CoverageID  *snowflake.ID
	Amount      decimal.Decimal
	TxHash      string
	BlockNumber uint64
	At          time.Time
}

// ClaimDecision is an administrative accept/reject.
type ClaimDecision struct {
	ClaimID string
	Status  ClaimStatus
	At      time.Time
}

type ClaimListFilter struct {
	PayerID *snowflake.ID
	Status  ClaimStatus
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	FindPayerByWallet(ctx context.Context, db *gorm.DB, wallet string) (*Payer, error)
	InsertPayer(ctx context.Context, db *gorm.DB, payer *Payer) (bool, error)

	FindCoverageByPayer(ctx context.Context, db *gorm.DB, payerID snowflake.ID) (*Coverage, error)
	EnsureCoverage(ctx context.Context, db *gorm.DB, coverage *Coverage) (*Coverage, error)

	FindPaymentByTxHash(ctx context.Context, db *gorm.DB, txHash string) (*PaymentRecord, error)
	InsertPaymentRecord(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
	IncrementPayerTotals(ctx context.Context, db *gorm.DB, totals PaymentTotals) error
	SetContentResult(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, status ContentStatus, contentID *string, contentErr *string, at time.Time) error
	ListPaymentsByPayer(ctx context.Context, db *gorm.DB, payerID snowflake.ID) ([]PaymentRecord, error)

	FindClaim(ctx context.Context, db *gorm.DB, claimID string) (*Claim, error)
	UpsertClaim(ctx context.Context, db *gorm.DB, submission ClaimSubmission) error
	MarkClaimVerified(ctx context.Context, db *gorm.DB, claimID string, verified bool, at time.Time) (bool, error)
	DecideClaim(ctx context.Context, db *gorm.DB, decision ClaimDecision) (bool, error)
	ListClaims(ctx context.Context, db *gorm.DB, filter ClaimListFilter) ([]Claim, error)
}
