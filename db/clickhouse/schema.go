package clickhouse

import (
	"context"
	"fmt"
)

// Snapshots use ReplacingMergeTree(_version) so activation can be rewritten by
// inserting a newer version of the row; reads go through FINAL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id         UUID,
		name       String,
		currency   LowCardinality(String),
		source     String,
		hash       String,
		is_active  UInt8,
		created_at DateTime64(3),
		_version   UInt64 DEFAULT 1,
		_deleted   UInt8 DEFAULT 0
	) ENGINE = ReplacingMergeTree(_version)
	ORDER BY (name, id)`,

	`CREATE TABLE IF NOT EXISTS catalog_resources (
		snapshot_id UUID,
		position    UInt32,
		name        String,
		unit_cost   Decimal(18, 4),
		created_at  DateTime64(3)
	) ENGINE = MergeTree
	ORDER BY (snapshot_id, position)`,

	`CREATE TABLE IF NOT EXISTS catalog_demand (
		snapshot_id    UUID,
		resource       String,
		severity_level LowCardinality(String),
		quantity       Int64
	) ENGINE = MergeTree
	ORDER BY (snapshot_id, resource, severity_level)`,

	`CREATE TABLE IF NOT EXISTS allocations (
		id             UUID,
		catalog_hash   String,
		severity_level LowCardinality(String),
		budget         Decimal(18, 4),
		status         LowCardinality(String),
		total_cost     Decimal(18, 4),
		balance        Decimal(18, 4),
		currency       LowCardinality(String),
		plan           Map(String, Int64),
		method         LowCardinality(String),
		nodes          UInt32,
		created_at     DateTime64(3)
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (created_at, id)`,
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Tables lists the tables Migrate manages.
func Tables() []string {
	return []string{"catalog_snapshots", "catalog_resources", "catalog_demand", "allocations"}
}
