package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"parking_checkout/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_attempts (
	id             BIGSERIAL PRIMARY KEY,
	checkout_id    TEXT NOT NULL,
	booking_id     BIGINT NOT NULL,
	amount         NUMERIC(12, 2) NOT NULL,
	payment_method TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	transaction_id TEXT,
	message        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT payment_attempts_transaction_id_key UNIQUE (transaction_id)
);
CREATE INDEX IF NOT EXISTS payment_attempts_booking_id_idx ON payment_attempts (booking_id);
CREATE INDEX IF NOT EXISTS payment_attempts_checkout_id_idx ON payment_attempts (checkout_id);
`

func NewDB(cfg *config.Config) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSslMode)

	db, err := sql.Open("pgx", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the ledger table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
