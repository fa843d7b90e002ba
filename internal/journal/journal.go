package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/clock"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("journal",
	fx.Provide(NewJournal),
)

// Failure describes one chain event that could not be applied.
type Failure struct {
	Kind        string
	TxHash      string
	LogIndex    uint
	BlockNumber uint64
	Payload     map[string]any
	Err         error
}

// Record is a persisted failure awaiting manual replay.
type Record struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Kind        string            `gorm:"type:text;not null;index" json:"kind"`
	TxHash      string            `gorm:"type:text;not null" json:"tx_hash"`
	LogIndex    uint              `gorm:"not null" json:"log_index"`
	BlockNumber uint64            `gorm:"not null" json:"block_number"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	Error       string            `gorm:"type:text;not null" json:"error"`
	DedupeKey   string            `gorm:"type:text;not null;uniqueIndex" json:"dedupe_key"`
	Attempts    int               `gorm:"not null;default:1" json:"attempts"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "reconcile_failures" }

// Journal stores reconcile failures in the reconcile_failures table.
type Journal struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewJournal(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Journal {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Journal{db: db, genID: genID, clock: clk}
}

// DedupeKey identifies one log entry across redeliveries.
func DedupeKey(kind, txHash string, logIndex uint) string {
	return fmt.Sprintf("%s:%s:%d", kind, strings.ToLower(txHash), logIndex)
}

// Record stores a failure; a redelivered failure bumps attempts instead of duplicating.
func (j *Journal) Record(ctx context.Context, failure Failure) error {
	if j == nil || j.db == nil || j.genID == nil {
		return errors.New("journal_unavailable")
	}
	kind := strings.TrimSpace(failure.Kind)
	if kind == "" {
		return errors.New("missing_event_kind")
	}
	if strings.TrimSpace(failure.TxHash) == "" {
		return errors.New("missing_tx_hash")
	}

	payload := datatypes.JSONMap{}
	for key, value := range failure.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	message := "unknown_error"
	if failure.Err != nil {
		message = failure.Err.Error()
	}

	now := j.clock.Now().UTC()
	return j.db.WithContext(ctx).Exec(
		`INSERT INTO reconcile_failures (id, kind, tx_hash, log_index, block_number, payload, error, dedupe_key, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (dedupe_key) DO UPDATE SET
			attempts = reconcile_failures.attempts + 1,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		j.genID.Generate(),
		kind,
		failure.TxHash,
		failure.LogIndex,
		failure.BlockNumber,
		payload,
		message,
		DedupeKey(kind, failure.TxHash, failure.LogIndex),
		now,
		now,
	).Error
}

// List returns the most recently updated failures.
func (j *Journal) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []Record
	if err := j.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
