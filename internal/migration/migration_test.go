package migration

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRunCreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migration_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := Run(db); err != nil {
		t.Fatalf("second run should be a no-op: %v", err)
	}
	for _, table := range []string{"payers", "coverages", "payment_records", "claims", "poll_cursors", "reconcile_failures", "audit_logs"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}
