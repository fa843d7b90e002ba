package cursor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("cursor",
	fx.Provide(NewStore),
)

// PollCursor is the last fully processed block for one event kind.
type PollCursor struct {
	Kind            string `gorm:"type:text;primaryKey"`
	LastBlock       uint64 `gorm:"not null"`
	LastHeartbeatAt *time.Time
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PollCursor) TableName() string { return "poll_cursors" }

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load returns the cursor for kind; ok is false when none was persisted.
func (s *Store) Load(ctx context.Context, kind string) (lastBlock uint64, ok bool, err error) {
	var row PollCursor
	err = s.db.WithContext(ctx).Where("kind = ?", kind).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.LastBlock, true, nil
}

// Advance moves the cursor forward; it never moves backwards.
func (s *Store) Advance(ctx context.Context, kind string, block uint64, at time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO poll_cursors (kind, last_block, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (kind) DO UPDATE SET
			last_block = CASE
				WHEN excluded.last_block > poll_cursors.last_block THEN excluded.last_block
				ELSE poll_cursors.last_block
			END,
			updated_at = excluded.updated_at`,
		kind,
		block,
		at,
	).Error
}

// Heartbeat stamps every cursor row with the completion time of a cycle.
func (s *Store) Heartbeat(ctx context.Context, kinds []string, at time.Time) error {
	if len(kinds) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE poll_cursors SET last_heartbeat_at = ? WHERE kind IN ?`,
		at,
		kinds,
	).Error
}

// LastHeartbeat returns the most recent persisted heartbeat, if any.
func (s *Store) LastHeartbeat(ctx context.Context) (*time.Time, error) {
	var rows []PollCursor
	if err := s.db.WithContext(ctx).
		Where("last_heartbeat_at IS NOT NULL").
		Order("last_heartbeat_at DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].LastHeartbeatAt, nil
}
