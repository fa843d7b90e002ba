package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	"github.com/smallbiznis/claimsync/internal/contentstore"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// policyNumberAttempts bounds how often a colliding policy number is widened.
const policyNumberAttempts = 3

func (e *Engine) applyPayment(ctx context.Context, ev chaindomain.RawEvent) (outcome, error) {
	payer, err := e.resolvePayer(ctx, ev.Payer)
	if err != nil {
		return "", err
	}

	existing, err := e.repo.FindPaymentByTxHash(ctx, e.db, ev.TxHash)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return outcomeDuplicate, nil
	}

	amount, err := weiToETH(ev)
	if err != nil {
		return "", err
	}

	now := e.clock.Now()
	coverage, err := e.ensureCoverage(ctx, payer, amount)
	if err != nil {
		return "", err
	}

	paidAt := ev.Timestamp
	record := &insurancedomain.PaymentRecord{
		ID:            e.genID.Generate(),
		PayerID:       payer.ID,
		CoverageID:    coverage.ID,
		TxHash:        ev.TxHash,
		LogIndex:      ev.LogIndex,
		Amount:        amount,
		AmountWei:     ev.AmountWei.String(),
		BlockNumber:   ev.BlockNumber,
		Status:        insurancedomain.PaymentStatusConfirmed,
		ContentStatus: insurancedomain.ContentStatusNotAttempted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	detail, err := e.fetchDetail(ctx, ev.TxHash)
	if err != nil {
		e.metrics.IncDetailUnavailable()
		logger.With(ctx, e.log).Warn("recording payment without transaction detail", zap.Error(err))
	} else {
		gasUsed := detail.GasUsed
		record.GasUsed = &gasUsed
		if detail.GasPrice != nil {
			gasPrice := detail.GasPrice.String()
			record.GasPrice = &gasPrice
		}
		if paidAt.IsZero() {
			paidAt = detail.ConfirmedAt
		}
	}
	if paidAt.IsZero() {
		paidAt = now
	}
	record.BlockTimestamp = paidAt.UTC()

	var inserted bool
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = e.repo.InsertPaymentRecord(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return e.repo.IncrementPayerTotals(ctx, tx, insurancedomain.PaymentTotals{
			PayerID:   payer.ID,
			Amount:    amount,
			PaidAt:    record.BlockTimestamp,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return "", err
	}
	if !inserted {
		// Another writer won the tx_hash race between the lookup and the insert.
		return outcomeDuplicate, nil
	}
	e.metrics.IncAggregate()

	e.archivePayment(ctx, payer, coverage, record)
	return outcomeApplied, nil
}

func (e *Engine) ensureCoverage(ctx context.Context, payer payerIdentity, premium decimal.Decimal) (*insurancedomain.Coverage, error) {
	coverage, err := e.repo.FindCoverageByPayer(ctx, e.db, payer.ID)
	if err != nil {
		return nil, err
	}
	if coverage != nil {
		return coverage, nil
	}

	now := e.clock.Now()
	for attempt := 0; attempt < policyNumberAttempts; attempt++ {
		coverage, err = e.repo.EnsureCoverage(ctx, e.db, &insurancedomain.Coverage{
			ID:           e.genID.Generate(),
			PayerID:      payer.ID,
			PolicyNumber: insurancedomain.PolicyNumberAttempt(payer.ID, attempt),
			Premium:      premium,
			Status:       insurancedomain.CoverageStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if !errors.Is(err, insurancedomain.ErrPolicyNumberTaken) {
			return coverage, err
		}
		logger.With(ctx, e.log).Warn("policy number held by another payer, widening",
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("payer %s: %w", payer.ID, insurancedomain.ErrPolicyNumberTaken)
}

// archivePayment runs after commit; its outcome never undoes the recorded payment.
func (e *Engine) archivePayment(ctx context.Context, payer payerIdentity, coverage *insurancedomain.Coverage, record *insurancedomain.PaymentRecord) {
	summary := contentstore.Summary{
		Buyer: contentstore.BuyerSummary{
			ID:            payer.ID.String(),
			FullName:      payer.FullName,
			Email:         payer.Email,
			WalletAddress: payer.WalletAddress,
			NationalID:    payer.NationalID,
		},
		Premium: contentstore.PremiumSummary{
			TransactionHash: record.TxHash,
			AmountETH:       record.Amount.String(),
			BlockNumber:     record.BlockNumber,
			BlockTimestamp:  record.BlockTimestamp,
			Status:          string(record.Status),
			PolicyNumber:    coverage.PolicyNumber,
		},
	}.Redacted()

	// The upload has its own deadline; the event deadline may already be spent.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ContentTimeout)
	contentID, err := e.store.Store(storeCtx, summary)
	cancel()

	var (
		status     insurancedomain.ContentStatus
		idValue    *string
		errMessage *string
	)
	switch {
	case err != nil:
		status = insurancedomain.ContentStatusFailed
		message := err.Error()
		if !errors.Is(err, contentstore.ErrContentStoreFailure) {
			message = contentstore.ErrContentStoreFailure.Error() + ": " + message
		}
		errMessage = &message
		e.metrics.IncContentStore(string(status))
		logger.With(ctx, e.log).Warn("content store upload failed", zap.Error(err))
	case contentID == "":
		return
	default:
		status = insurancedomain.ContentStatusStored
		idValue = &contentID
		e.metrics.IncContentStore(string(status))
	}

	writeCtx, cancelWrite := e.detached(ctx)
	defer cancelWrite()
	if err := e.repo.SetContentResult(writeCtx, e.db, record.ID, status, idValue, errMessage, e.clock.Now()); err != nil {
		logger.With(ctx, e.log).Error("failed to record content store result",
			zap.String("content_status", string(status)),
			zap.Error(err),
		)
	}
}
