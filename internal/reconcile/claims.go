package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	chaindomain "github.com/smallbiznis/claimsync/internal/chain/domain"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"go.uber.org/zap"
)

func (e *Engine) applyClaimSubmitted(ctx context.Context, ev chaindomain.RawEvent) (outcome, error) {
	claimID := strings.TrimSpace(ev.ClaimID)
	if claimID == "" {
		return "", errors.New("missing_claim_id")
	}
	payer, err := e.resolvePayer(ctx, ev.Payer)
	if err != nil {
		return "", err
	}
	amount, err := weiToETH(ev)
	if err != nil {
		return "", err
	}

	coverage, err := e.repo.FindCoverageByPayer(ctx, e.db, payer.ID)
	if err != nil {
		return "", err
	}
	submission := insurancedomain.ClaimSubmission{
		ID:          e.genID.Generate(),
		ClaimID:     claimID,
		PayerID:     payer.ID,
		Amount:      amount,
		TxHash:      ev.TxHash,
		BlockNumber: ev.BlockNumber,
		At:          e.clock.Now(),
	}
	if coverage != nil {
		submission.CoverageID = &coverage.ID
	}

	if err := e.repo.UpsertClaim(ctx, e.db, submission); err != nil {
		return "", err
	}
	return outcomeApplied, nil
}

func (e *Engine) applyClaimVerified(ctx context.Context, ev chaindomain.RawEvent) (outcome, error) {
	claimID := strings.TrimSpace(ev.ClaimID)
	if claimID == "" {
		return "", errors.New("missing_claim_id")
	}

	claim, err := e.repo.FindClaim(ctx, e.db, claimID)
	if err != nil {
		return "", err
	}
	if claim == nil {
		return "", fmt.Errorf("%w: claim %s has not been submitted", insurancedomain.ErrDanglingReference, claimID)
	}
	if claim.Status.IsAdminTerminal() {
		logger.With(ctx, e.log).Info("verification ignored for decided claim",
			zap.String("claim_id", claimID),
			zap.String("status", string(claim.Status)),
		)
		return outcomeSkipped, nil
	}

	changed, err := e.repo.MarkClaimVerified(ctx, e.db, claimID, ev.Verified, e.verificationTime(ctx, ev))
	if err != nil {
		return "", err
	}
	if !changed {
		return outcomeSkipped, nil
	}
	return outcomeApplied, nil
}

// verificationTime prefers the block time of the verifying transaction.
func (e *Engine) verificationTime(ctx context.Context, ev chaindomain.RawEvent) time.Time {
	if ev.TxHash != "" {
		detail, err := e.fetchDetail(ctx, ev.TxHash)
		if err == nil && !detail.ConfirmedAt.IsZero() {
			return detail.ConfirmedAt.UTC()
		}
		if err != nil {
			e.metrics.IncDetailUnavailable()
		}
	}
	return e.clock.Now()
}

// fetchDetail treats a missing fetcher like an unreachable one.
func (e *Engine) fetchDetail(ctx context.Context, txHash string) (chaindomain.TxDetail, error) {
	if e.details == nil {
		return chaindomain.TxDetail{}, chaindomain.ErrDetailUnavailable
	}
	return e.details.Fetch(ctx, txHash)
}
