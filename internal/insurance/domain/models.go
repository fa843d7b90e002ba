package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type CoverageStatus string

const (
	CoverageStatusActive   CoverageStatus = "active"
	CoverageStatusInactive CoverageStatus = "inactive"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ContentStatus records the outcome of the post-commit summary upload.
type ContentStatus string

const (
	ContentStatusNotAttempted ContentStatus = "not_attempted"
	ContentStatusStored       ContentStatus = "stored"
	ContentStatusFailed       ContentStatus = "failed"
)

type ClaimStatus string

const (
	ClaimStatusSubmitted   ClaimStatus = "submitted"
	ClaimStatusVerified    ClaimStatus = "verified"
	ClaimStatusUnverified  ClaimStatus = "unverified"
	ClaimStatusAccepted    ClaimStatus = "accepted"
	ClaimStatusNotApproved ClaimStatus = "not_approved"
	ClaimStatusRejected    ClaimStatus = "rejected"
	ClaimStatusPaid        ClaimStatus = "paid"
	ClaimStatusCancelled   ClaimStatus = "cancelled"
)

// AdminTerminalStatuses are decided off-chain; verification events never move a claim out of them.
var AdminTerminalStatuses = []ClaimStatus{
	ClaimStatusAccepted,
	ClaimStatusNotApproved,
	ClaimStatusPaid,
	ClaimStatusCancelled,
}

// IsAdminTerminal reports whether status was set by an administrator.
func (s ClaimStatus) IsAdminTerminal() bool {
	for _, terminal := range AdminTerminalStatuses {
		if s == terminal {
			return true
		}
	}
	return false
}

// Payer is a registered policy holder identified by wallet address.
type Payer struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	WalletAddress string          `gorm:"type:text;not null;uniqueIndex" json:"wallet_address"`
	NationalID    string          `gorm:"type:text;not null;uniqueIndex" json:"national_id"`
	FullName      string          `gorm:"type:text;not null" json:"full_name"`
	Email         string          `gorm:"type:text" json:"email"`
	Phone         string          `gorm:"type:text" json:"phone"`
	TotalPaid     decimal.Decimal `gorm:"type:numeric(30,18);not null;default:0" json:"total_paid"`
	PaymentCount  int64           `gorm:"not null;default:0" json:"payment_count"`
	LastPaymentAt *time.Time      `json:"last_payment_at,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payer) TableName() string { return "payers" }

// Coverage is the policy created lazily on a payer's first payment.
type Coverage struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	PayerID      snowflake.ID    `gorm:"not null;index" json:"payer_id"`
	PolicyNumber string          `gorm:"type:text;not null;uniqueIndex" json:"policy_number"`
	Premium      decimal.Decimal `gorm:"type:numeric(30,18);not null" json:"premium"`
	Status       CoverageStatus  `gorm:"type:text;not null" json:"status"`
	CreatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Coverage) TableName() string { return "coverages" }

// PaymentRecord is one confirmed premium payment, unique per transaction hash.
type PaymentRecord struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	PayerID        snowflake.ID    `gorm:"not null;index" json:"payer_id"`
	CoverageID     snowflake.ID    `gorm:"not null;index" json:"coverage_id"`
	TxHash         string          `gorm:"type:text;not null;uniqueIndex" json:"tx_hash"`
	LogIndex       uint            `gorm:"not null" json:"log_index"`
	Amount         decimal.Decimal `gorm:"type:numeric(30,18);not null" json:"amount"`
	AmountWei      string          `gorm:"type:text;not null" json:"amount_wei"`
	BlockNumber    uint64          `gorm:"not null;index" json:"block_number"`
	BlockTimestamp time.Time       `gorm:"not null" json:"block_timestamp"`
	GasUsed        *uint64         `json:"gas_used,omitempty"`
	GasPrice       *string         `gorm:"type:text" json:"gas_price,omitempty"`
	Status         PaymentStatus   `gorm:"type:text;not null" json:"status"`
	ContentID      *string         `gorm:"type:text" json:"content_id,omitempty"`
	ContentStatus  ContentStatus   `gorm:"type:text;not null;default:'not_attempted'" json:"content_status"`
	ContentError   *string         `gorm:"type:text" json:"content_error,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (PaymentRecord) TableName() string { return "payment_records" }

// Claim mirrors an on-chain claim plus its off-chain administrative state.
type Claim struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClaimID         string          `gorm:"type:text;not null;uniqueIndex" json:"claim_id"`
	PayerID         snowflake.ID    `gorm:"not null;index" json:"payer_id"`
	CoverageID      *snowflake.ID   `json:"coverage_id,omitempty"`
	Amount          decimal.Decimal `gorm:"type:numeric(30,18);not null" json:"amount"`
	Description     string          `gorm:"type:text" json:"description"`
	HospitalTxnID   *string         `gorm:"type:text" json:"hospital_txn_id,omitempty"`
	Status          ClaimStatus     `gorm:"type:text;not null;index" json:"status"`
	SubmittedTxHash string          `gorm:"type:text" json:"submitted_tx_hash"`
	SubmittedBlock  uint64          `json:"submitted_block"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Claim) TableName() string { return "claims" }
