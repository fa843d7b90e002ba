package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/claimsync/internal/audit/domain"
	"github.com/smallbiznis/claimsync/internal/clock"
	"github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Clock    clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	auditSvc auditdomain.Service
	clock    clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("insurance.service"),
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		clock:    p.Clock,
	}
}

func (s *Service) History(ctx context.Context, wallet string) (*domain.PayerHistory, error) {
	payer, err := s.findPayer(ctx, wallet)
	if err != nil {
		return nil, err
	}

	coverage, err := s.repo.FindCoverageByPayer(ctx, s.db, payer.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.ListPaymentsByPayer(ctx, s.db, payer.ID)
	if err != nil {
		return nil, err
	}
	claims, err := s.repo.ListClaims(ctx, s.db, domain.ClaimListFilter{PayerID: &payer.ID})
	if err != nil {
		return nil, err
	}

	if payments == nil {
		payments = []domain.PaymentRecord{}
	}
	if claims == nil {
		claims = []domain.Claim{}
	}
	return &domain.PayerHistory{
		Payer:    *payer,
		Coverage: coverage,
		Payments: payments,
		Claims:   claims,
	}, nil
}

func (s *Service) ListClaims(ctx context.Context, req domain.ListClaimsRequest) (domain.ListClaimsResponse, error) {
	filter := domain.ClaimListFilter{}

	if wallet := strings.TrimSpace(req.Wallet); wallet != "" {
		payer, err := s.findPayer(ctx, wallet)
		if err != nil {
			return domain.ListClaimsResponse{}, err
		}
		filter.PayerID = &payer.ID
	}

	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		if !validClaimStatus(domain.ClaimStatus(status)) {
			return domain.ListClaimsResponse{}, domain.ErrInvalidClaimStatus
		}
		filter.Status = domain.ClaimStatus(status)
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListClaimsResponse{}, err
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListClaimsResponse{}, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	pageSize := pagination.Pagination{PageSize: req.PageSize}.Size()
	filter.Limit = pageSize + 1

	items, err := s.repo.ListClaims(ctx, s.db, filter)
	if err != nil {
		return domain.ListClaimsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(claim domain.Claim) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        claim.ID.String(),
			CreatedAt: claim.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}
	if items == nil {
		items = []domain.Claim{}
	}
	return domain.ListClaimsResponse{Claims: items, PageInfo: *pageInfo}, nil
}

// Decide records an administrative accept or reject together with its audit entry.
func (s *Service) Decide(ctx context.Context, req domain.DecisionRequest) (*domain.Claim, error) {
	claimID := strings.TrimSpace(req.ClaimID)
	if claimID == "" {
		return nil, domain.ErrClaimNotFound
	}

	var status domain.ClaimStatus
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case domain.DecisionAccept:
		status = domain.ClaimStatusAccepted
	case domain.DecisionReject:
		status = domain.ClaimStatusNotApproved
	default:
		return nil, domain.ErrInvalidDecision
	}

	actor := strings.TrimSpace(req.Actor)
	now := s.clock.Now()

	var updated *domain.Claim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.repo.FindClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return domain.ErrClaimNotFound
		}

		changed, err := s.repo.DecideClaim(ctx, tx, domain.ClaimDecision{ClaimID: claimID, Status: status, At: now})
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrClaimClosed
		}

		var actorID *string
		if actor != "" {
			actorID = &actor
		}
		metadata := map[string]any{
			"previous_status": string(claim.Status),
			"status":          string(status),
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			metadata["note"] = note
		}
		if err := s.auditSvc.AuditLog(ctx, tx, auditdomain.ActorTypeOperator, actorID, "claim.decide", "claim", &claimID, metadata); err != nil {
			return err
		}

		updated, err = s.repo.FindClaim(ctx, tx, claimID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("claim decided",
		zap.String("claim_id", claimID),
		zap.String("status", string(status)),
	)
	return updated, nil
}

func (s *Service) findPayer(ctx context.Context, wallet string) (*domain.Payer, error) {
	normalized, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}
	payer, err := s.repo.FindPayerByWallet(ctx, s.db, normalized)
	if err != nil {
		return nil, err
	}
	if payer == nil {
		return nil, domain.ErrPayerNotFound
	}
	return payer, nil
}

func validClaimStatus(status domain.ClaimStatus) bool {
	switch status {
	case domain.ClaimStatusSubmitted,
		domain.ClaimStatusVerified,
		domain.ClaimStatusUnverified,
		domain.ClaimStatusAccepted,
		domain.ClaimStatusNotApproved,
		domain.ClaimStatusRejected,
		domain.ClaimStatusPaid,
		domain.ClaimStatusCancelled:
		return true
	}
	return false
}
