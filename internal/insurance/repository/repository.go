package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func New() domain.Repository {
	return &repo{}
}

func (r *repo) FindPayerByWallet(ctx context.Context, conn *gorm.DB, wallet string) (*domain.Payer, error) {
	var payer domain.Payer
	err := conn.WithContext(ctx).
		Where("wallet_address = ?", wallet).
		First(&payer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payer, nil
}

func (r *repo) InsertPayer(ctx context.Context, conn *gorm.DB, payer *domain.Payer) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO payers (id, wallet_address, national_id, full_name, email, phone, total_paid, payment_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT (wallet_address) DO NOTHING`,
		payer.ID,
		payer.WalletAddress,
		payer.NationalID,
		payer.FullName,
		payer.Email,
		payer.Phone,
		payer.CreatedAt,
		payer.UpdatedAt,
	)
	if result.Error != nil {
		if db.IsUniqueViolation(result.Error) {
			return false, domain.ErrDuplicateNationalID
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) FindCoverageByPayer(ctx context.Context, conn *gorm.DB, payerID snowflake.ID) (*domain.Coverage, error) {
	var coverage domain.Coverage
	err := conn.WithContext(ctx).
		Where("payer_id = ?", payerID).
		Order("created_at ASC, id ASC").
		First(&coverage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &coverage, nil
}

// EnsureCoverage inserts the coverage unless its policy number exists, then returns the stored row.
// A policy number already held by another payer yields ErrPolicyNumberTaken.
func (r *repo) EnsureCoverage(ctx context.Context, conn *gorm.DB, coverage *domain.Coverage) (*domain.Coverage, error) {
	if err := conn.WithContext(ctx).Exec(
		`INSERT INTO coverages (id, payer_id, policy_number, premium, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (policy_number) DO NOTHING`,
		coverage.ID,
		coverage.PayerID,
		coverage.PolicyNumber,
		coverage.Premium,
		coverage.Status,
		coverage.CreatedAt,
		coverage.UpdatedAt,
	).Error; err != nil {
		return nil, err
	}

	var stored domain.Coverage
	if err := conn.WithContext(ctx).
		Where("policy_number = ?", coverage.PolicyNumber).
		First(&stored).Error; err != nil {
		return nil, err
	}
	if stored.PayerID != coverage.PayerID {
		return nil, domain.ErrPolicyNumberTaken
	}
	return &stored, nil
}

func (r *repo) FindPaymentByTxHash(ctx context.Context, conn *gorm.DB, txHash string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := conn.WithContext(ctx).
		Where("tx_hash = ?", txHash).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertPaymentRecord reports true only for the caller whose insert won the tx_hash race.
func (r *repo) InsertPaymentRecord(ctx context.Context, conn *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, payer_id, coverage_id, tx_hash, log_index, amount, amount_wei,
			block_number, block_timestamp, gas_used, gas_price, status,
			content_status, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tx_hash) DO NOTHING`,
		record.ID,
		record.PayerID,
		record.CoverageID,
		record.TxHash,
		record.LogIndex,
		record.Amount,
		record.AmountWei,
		record.BlockNumber,
		record.BlockTimestamp,
		record.GasUsed,
		record.GasPrice,
		record.Status,
		record.ContentStatus,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) IncrementPayerTotals(ctx context.Context, conn *gorm.DB, totals domain.PaymentTotals) error {
	result := conn.WithContext(ctx).Exec(
		`UPDATE payers
		 SET total_paid = total_paid + ?,
		     payment_count = payment_count + 1,
		     last_payment_at = CASE
		         WHEN last_payment_at IS NULL OR last_payment_at < ? THEN ?
		         ELSE last_payment_at
		     END,
		     updated_at = ?
		 WHERE id = ?`,
		totals.Amount,
		totals.PaidAt,
		totals.PaidAt,
		totals.UpdatedAt,
		totals.PayerID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPayerNotFound
	}
	return nil
}

func (r *repo) SetContentResult(
	ctx context.Context,
	conn *gorm.DB,
	paymentID snowflake.ID,
	status domain.ContentStatus,
	contentID *string,
	contentErr *string,
	at time.Time,
) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET content_status = ?, content_id = ?, content_error = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		contentID,
		contentErr,
		at,
		paymentID,
	).Error
}

func (r *repo) ListPaymentsByPayer(ctx context.Context, conn *gorm.DB, payerID snowflake.ID) ([]domain.PaymentRecord, error) {
	var records []domain.PaymentRecord
	if err := conn.WithContext(ctx).
		Where("payer_id = ?", payerID).
		Order("block_number DESC, log_index DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindClaim(ctx context.Context, conn *gorm.DB, claimID string) (*domain.Claim, error) {
	var claim domain.Claim
	err := conn.WithContext(ctx).
		Where("claim_id = ?", claimID).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// UpsertClaim never touches status on conflict, so replays after verification are inert.
func (r *repo) UpsertClaim(ctx context.Context, conn *gorm.DB, submission domain.ClaimSubmission) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO claims (
			id, claim_id, payer_id, coverage_id, amount, description, status,
			submitted_tx_hash, submitted_block, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?)
		 ON CONFLICT (claim_id) DO UPDATE SET
			amount = excluded.amount,
			payer_id = excluded.payer_id,
			coverage_id = COALESCE(excluded.coverage_id, claims.coverage_id),
			updated_at = excluded.updated_at`,
		submission.ID,
		submission.ClaimID,
		submission.PayerID,
		submission.CoverageID,
		submission.Amount,
		domain.ClaimStatusSubmitted,
		submission.TxHash,
		submission.BlockNumber,
		submission.At,
		submission.At,
	).Error
}

// MarkClaimVerified returns false when the claim is missing or already decided by an administrator.
func (r *repo) MarkClaimVerified(ctx context.Context, conn *gorm.DB, claimID string, verified bool, at time.Time) (bool, error) {
	var result *gorm.DB
	if verified {
		result = conn.WithContext(ctx).Exec(
			`UPDATE claims
			 SET status = ?, verified_at = COALESCE(verified_at, ?), updated_at = ?
			 WHERE claim_id = ? AND status NOT IN ?`,
			domain.ClaimStatusVerified,
			at,
			at,
			claimID,
			domain.AdminTerminalStatuses,
		)
	} else {
		result = conn.WithContext(ctx).Exec(
			`UPDATE claims
			 SET status = ?, updated_at = ?
			 WHERE claim_id = ? AND status NOT IN ?`,
			domain.ClaimStatusRejected,
			at,
			claimID,
			domain.AdminTerminalStatuses,
		)
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DecideClaim(ctx context.Context, conn *gorm.DB, decision domain.ClaimDecision) (bool, error) {
	closed := []domain.ClaimStatus{domain.ClaimStatusPaid, domain.ClaimStatusCancelled}

	var result *gorm.DB
	switch decision.Status {
	case domain.ClaimStatusAccepted:
		result = conn.WithContext(ctx).Exec(
			`UPDATE claims
			 SET status = ?, accepted_at = ?, decided_at = ?, updated_at = ?
			 WHERE claim_id = ? AND status NOT IN ?`,
			decision.Status,
			decision.At,
			decision.At,
			decision.At,
			decision.ClaimID,
			closed,
		)
	case domain.ClaimStatusNotApproved:
		result = conn.WithContext(ctx).Exec(
			`UPDATE claims
			 SET status = ?, decided_at = ?, updated_at = ?
			 WHERE claim_id = ? AND status NOT IN ?`,
			decision.Status,
			decision.At,
			decision.At,
			decision.ClaimID,
			closed,
		)
	default:
		return false, domain.ErrInvalidDecision
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListClaims(ctx context.Context, conn *gorm.DB, filter domain.ClaimListFilter) ([]domain.Claim, error) {
	query := conn.WithContext(ctx).Model(&domain.Claim{})
	if filter.PayerID != nil {
		query = query.Where("payer_id = ?", *filter.PayerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AfterID != 0 {
		query = query.Where("id < ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var claims []domain.Claim
	if err := query.Order("id DESC").Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}
