package infra

import (
	"fmt"

	"oticapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that
// GORM cannot express (partial unique index, CHECK constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return db, nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
// Each statement is guarded by an existence check so re-running on an
// already-patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// The "at most one open session" invariant. A second concurrent open
		// hits this index no matter how many server instances are running.
		{"partial unique index: one open cash session", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_cash_sessions_open') THEN
    CREATE UNIQUE INDEX uni_cash_sessions_open ON cash_sessions (status) WHERE status = 'open';
  END IF;
END $$`},
		// The conditional UPDATEs already refuse to go negative; the
		// constraints make any future bug loud instead of a silent drift.
		{"check: product stock never negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_products_stock_non_negative') THEN
    ALTER TABLE products ADD CONSTRAINT chk_products_stock_non_negative CHECK (stock >= 0);
  END IF;
END $$`},
		{"check: legacy client debt never negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_legacy_clients_debt_non_negative') THEN
    ALTER TABLE legacy_clients ADD CONSTRAINT chk_legacy_clients_debt_non_negative CHECK (debt >= 0);
  END IF;
END $$`},
		{"check: session balance never negative", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cash_sessions_balance_non_negative') THEN
    ALTER TABLE cash_sessions ADD CONSTRAINT chk_cash_sessions_balance_non_negative CHECK (current_balance >= 0);
  END IF;
END $$`},
		{"check: payment amount positive", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_payments_amount_positive') THEN
    ALTER TABLE payments ADD CONSTRAINT chk_payments_amount_positive CHECK (amount > 0);
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

// RunMigrations applies the model migrations and the schema patches. Schema
// is owned by this service; AutoMigrate keeps columns in sync and the patches
// add what GORM cannot express.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.CashSession{},
		&model.Payment{},
		&model.LegacyClient{},
		&model.DebtPayment{},
		&model.StockMovement{},
	); err != nil {
		return err
	}
	return applySchemaPatches(db)
}
