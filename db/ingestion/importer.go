// Package ingestion imports relief catalogs into ClickHouse as versioned snapshots.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dhanya-cpu/disaster-ai-system/db/clickhouse"
	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// costScale is the number of decimal places the unit_cost column keeps.
const costScale = 4

// SnapshotStore is the subset of the ClickHouse store the importer writes to.
type SnapshotStore interface {
	FindSnapshotByHash(ctx context.Context, name, hash string) (*clickhouse.CatalogSnapshot, error)
	CreateSnapshot(ctx context.Context, snapshot *clickhouse.CatalogSnapshot) error
	BulkCreateResources(ctx context.Context, resources []clickhouse.ResourceRow, demand []clickhouse.DemandRow) error
	CountResources(ctx context.Context, snapshotID uuid.UUID) (int, error)
	ActivateSnapshot(ctx context.Context, id uuid.UUID) error
}

// Importer writes catalogs into the snapshot store.
type Importer struct {
	store SnapshotStore
	log   zerolog.Logger
}

// NewImporter creates an importer.
func NewImporter(store SnapshotStore, log zerolog.Logger) *Importer {
	return &Importer{store: store, log: log.With().Str("component", "catalog_import").Logger()}
}

// ImportResult tracks the result of a catalog import
type ImportResult struct {
	SnapshotID    uuid.UUID
	Catalog       string
	Hash          string
	ResourceCount int
	DemandCount   int
	Reused        bool
	Activated     bool
	Duration      time.Duration
}

// Import stores cat as a snapshot. Content already stored under the same
// catalog name is not duplicated; the existing snapshot is reused.
func (i *Importer) Import(ctx context.Context, cat *catalog.Catalog, source string, activate bool) (*ImportResult, error) {
	start := time.Now()
	if err := checkScale(cat); err != nil {
		return nil, err
	}

	result := &ImportResult{Catalog: cat.Name(), Hash: cat.Hash()}

	existing, err := i.store.FindSnapshotByHash(ctx, cat.Name(), result.Hash)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		result.SnapshotID = existing.ID
		result.Reused = true
		i.log.Info().Str("catalog", cat.Name()).Str("snapshot", existing.ID.String()).Msg("Catalog content already stored, reusing snapshot")
	} else {
		snapshot := &clickhouse.CatalogSnapshot{
			ID:       uuid.New(),
			Name:     cat.Name(),
			Currency: string(cat.Currency()),
			Source:   source,
			Hash:     result.Hash,
		}
		if err := i.store.CreateSnapshot(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to create snapshot: %w", err)
		}
		result.SnapshotID = snapshot.ID

		resources, demand := clickhouse.SnapshotRows(snapshot.ID, cat)
		if err := i.store.BulkCreateResources(ctx, resources, demand); err != nil {
			return nil, fmt.Errorf("failed to store resources: %w", err)
		}
		result.ResourceCount = len(resources)
		result.DemandCount = len(demand)

		if err := i.Verify(ctx, snapshot.ID, cat.Len()); err != nil {
			return nil, err
		}
	}

	if activate {
		if err := i.store.ActivateSnapshot(ctx, result.SnapshotID); err != nil {
			return nil, fmt.Errorf("failed to activate snapshot: %w", err)
		}
		result.Activated = true
	}

	result.Duration = time.Since(start)
	i.log.Info().
		Str("catalog", result.Catalog).
		Str("snapshot", result.SnapshotID.String()).
		Int("resources", result.ResourceCount).
		Bool("activated", result.Activated).
		Dur("duration", result.Duration).
		Msg("Catalog imported")
	return result, nil
}

// Verify checks that a snapshot holds the expected number of resources.
func (i *Importer) Verify(ctx context.Context, snapshotID uuid.UUID, want int) error {
	got, err := i.store.CountResources(ctx, snapshotID)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("snapshot %s holds %d resources, expected %d", snapshotID, got, want)
	}
	return nil
}

func checkScale(cat *catalog.Catalog) error {
	for _, r := range cat.Resources() {
		if !r.UnitCost.Equal(r.UnitCost.Truncate(costScale)) {
			return apperrors.NewInvalidCatalogError("unit cost %s of %s has more than %d decimal places", r.UnitCost, r.Name, costScale)
		}
	}
	return nil
}
