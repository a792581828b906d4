// Package postgres implements the store ports on top of database/sql and
// lib/pq, following the connection-pool and schema-bootstrap conventions
// of the ArmorClaw license server this package is adapted from.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/armorclaw/license-server/internal/store"
)

// DB wraps a *sql.DB configured for the license service's workload.
type DB struct {
	*sql.DB
}

// Open connects to databaseURL, configures the pool, pings, and applies
// the schema (CREATE TABLE IF NOT EXISTS, idempotent like initSchema).
func Open(databaseURL string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &DB{DB: sqlDB}
	if err := db.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

// BeginTx starts a transaction, satisfying store.TxBeginner.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (store.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (db *DB) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS brands (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(100) UNIQUE NOT NULL,
		prefix VARCHAR(10) UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS products (
		id UUID PRIMARY KEY,
		brand_id UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (brand_id, slug)
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		brand_id UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		key_prefix VARCHAR(16) NOT NULL,
		key_hash VARCHAR(64) UNIQUE NOT NULL,
		scope VARCHAR(10) NOT NULL DEFAULT 'full',
		expires_at TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash);

	CREATE TABLE IF NOT EXISTS license_keys (
		id UUID PRIMARY KEY,
		brand_id UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		key VARCHAR(64) UNIQUE NOT NULL,
		key_hash VARCHAR(64) NOT NULL,
		customer_email VARCHAR(320) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_license_keys_hash ON license_keys(key_hash);
	CREATE INDEX IF NOT EXISTS idx_license_keys_brand_email ON license_keys(brand_id, customer_email);

	CREATE TABLE IF NOT EXISTS licenses (
		id UUID PRIMARY KEY,
		license_key_id UUID NOT NULL REFERENCES license_keys(id) ON DELETE CASCADE,
		product_id UUID NOT NULL REFERENCES products(id),
		status VARCHAR(20) NOT NULL DEFAULT 'valid',
		seat_limit INTEGER NOT NULL DEFAULT 1,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (license_key_id, product_id)
	);
	CREATE INDEX IF NOT EXISTS idx_licenses_key_status ON licenses(license_key_id, status);
	CREATE INDEX IF NOT EXISTS idx_licenses_expires ON licenses(expires_at);

	CREATE TABLE IF NOT EXISTS activations (
		id UUID PRIMARY KEY,
		license_id UUID NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
		instance_identifier VARCHAR(500) NOT NULL,
		instance_type VARCHAR(20) NOT NULL,
		instance_metadata JSONB NOT NULL DEFAULT '{}',
		activated_at TIMESTAMPTZ NOT NULL,
		last_checked_at TIMESTAMPTZ NOT NULL,
		deactivated_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT true,
		UNIQUE (license_id, instance_identifier)
	);
	CREATE INDEX IF NOT EXISTS idx_activations_license_active ON activations(license_id, is_active);

	CREATE TABLE IF NOT EXISTS webhook_configs (
		id UUID PRIMARY KEY,
		brand_id UUID NOT NULL REFERENCES brands(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		secret VARCHAR(255) NOT NULL,
		events TEXT[] NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		max_retries INTEGER NOT NULL DEFAULT 3,
		timeout_seconds INTEGER NOT NULL DEFAULT 10,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		brand_id UUID NOT NULL,
		entity_type VARCHAR(50) NOT NULL,
		entity_id UUID NOT NULL,
		action VARCHAR(50) NOT NULL,
		changes JSONB NOT NULL DEFAULT '{}',
		actor VARCHAR(255) NOT NULL DEFAULT 'system',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS idempotency_keys (
		key VARCHAR(255) NOT NULL,
		brand_id UUID NOT NULL,
		response_data JSONB NOT NULL,
		status_code INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (brand_id, key)
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}
