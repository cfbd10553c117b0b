package repositories

import (
	"context"
	"fmt"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/models/entities"

	"github.com/jmoiron/sqlx"
)

// StatsRepo serves read-only aggregates over collected records
type StatsRepo struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// RecordStats returns per-platform record counts and attachment totals for an owner
func (r *StatsRepo) RecordStats(ctx context.Context, ownerID string) (*entities.RecordStats, error) {
	var rows []entities.PlatformRecordCount
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(constants.RecordCountsByPlatform), ownerID); err != nil {
		return nil, fmt.Errorf("failed to query record counts: %w", err)
	}

	var totals entities.AttachmentTotals
	if err := r.db.GetContext(ctx, &totals, r.db.Rebind(constants.AttachmentTotalsByOwner), ownerID); err != nil {
		return nil, fmt.Errorf("failed to query attachment totals: %w", err)
	}

	stats := &entities.RecordStats{
		ByPlatform:       rows,
		Attachments:      totals.Attachments,
		AttachmentsBytes: totals.Bytes,
	}
	if stats.ByPlatform == nil {
		stats.ByPlatform = []entities.PlatformRecordCount{}
	}
	for _, row := range rows {
		stats.Total += row.Total
		stats.Deleted += row.Deleted
	}
	return stats, nil
}
