package migration

import (
	"fmt"

	auditdomain "github.com/smallbiznis/claimsync/internal/audit/domain"
	"github.com/smallbiznis/claimsync/internal/config"
	"github.com/smallbiznis/claimsync/internal/cursor"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/journal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(runOnStartup),
)

// Models lists every table owned by claimsync.
func Models() []any {
	return []any{
		&insurancedomain.Payer{},
		&insurancedomain.Coverage{},
		&insurancedomain.PaymentRecord{},
		&insurancedomain.Claim{},
		&cursor.PollCursor{},
		&journal.Record{},
		&auditdomain.AuditLog{},
	}
}

// Run creates or updates the schema.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func runOnStartup(cfg config.Config, db *gorm.DB, log *zap.Logger) error {
	if !cfg.Database.AutoMigrate {
		log.Named("migration").Info("auto migrate disabled")
		return nil
	}
	if err := Run(db); err != nil {
		return err
	}
	log.Named("migration").Info("schema migrated", zap.Int("tables", len(Models())))
	return nil
}
