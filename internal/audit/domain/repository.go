package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidAction = errors.New("invalid_audit_action")
	ErrInvalidTarget = errors.New("invalid_audit_target")
)

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	// AuditLog writes through tx when given, otherwise through the default connection.
	AuditLog(ctx context.Context, tx *gorm.DB, actorType ActorType, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
