package contentstore

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/claimsync/internal/observability/logger"
)

var ErrContentStoreFailure = errors.New("content_store_failure")

// ContentStore archives a payment summary and returns its content identifier.
type ContentStore interface {
	Store(ctx context.Context, summary Summary) (string, error)
}

// Summary is the document archived for each recorded premium payment.
type Summary struct {
	Buyer   BuyerSummary   `json:"buyer"`
	Premium PremiumSummary `json:"premium"`
}

type BuyerSummary struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	NationalID    string `json:"national_id"`
}

type PremiumSummary struct {
	TransactionHash string    `json:"transaction_hash"`
	AmountETH       string    `json:"amount_eth"`
	BlockNumber     uint64    `json:"block_number"`
	BlockTimestamp  time.Time `json:"block_timestamp"`
	Status          string    `json:"status"`
	PolicyNumber    string    `json:"policy_number"`
}

// Redacted masks payer PII before the summary leaves the process.
func (s Summary) Redacted() Summary {
	s.Buyer.Email = logger.MaskEmail(s.Buyer.Email)
	s.Buyer.NationalID = logger.MaskIdentifier(s.Buyer.NationalID)
	return s
}

// Noop accepts every summary without storing it.
type Noop struct{}

func (Noop) Store(context.Context, Summary) (string, error) { return "", nil }
