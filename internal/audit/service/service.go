package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/audit/domain"
	obscontext "github.com/smallbiznis/claimsync/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(
	ctx context.Context,
	tx *gorm.DB,
	actorType domain.ActorType,
	actorID *string,
	action string,
	targetType string,
	targetID *string,
	metadata map[string]any,
) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		return domain.ErrInvalidTarget
	}
	ctxActorType, ctxActorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = domain.ActorType(ctxActorType)
	}
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}
	if actorID == nil && ctxActorID != "" {
		actorID = &ctxActorID
	}

	meta := datatypes.JSONMap{}
	for key, value := range metadata {
		meta[key] = value
	}

	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  string(actorType),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   meta,
		CreatedAt:  time.Now().UTC(),
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		entry.RequestID = &requestID
	}

	db := tx
	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, entry); err != nil {
		s.log.Error("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	return s.repo.List(ctx, s.db, filter)
}
