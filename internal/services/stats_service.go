package services

import (
	"context"
	"encoding/json"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/models/entities"
)

const statsCacheTTL = 30 * time.Second

// RecordStatsSource is the read side the stats endpoint aggregates from
type RecordStatsSource interface {
	RecordStats(ctx context.Context, ownerID string) (*entities.RecordStats, error)
}

// StatsService serves per-owner record counts, cached briefly
type StatsService struct {
	repo  RecordStatsSource
	cache common.CacheInterface
}

func NewStatsService(repo RecordStatsSource, cache common.CacheInterface) *StatsService {
	return &StatsService{repo: repo, cache: cache}
}

func (s *StatsService) RecordStats(ctx context.Context, ownerID string) (*entities.RecordStats, error) {
	key := string(constants.CachePrefixRecordStats) + ownerID

	data, err := s.cache.GetOrSet(ctx, key, statsCacheTTL, func() ([]byte, error) {
		stats, err := s.repo.RecordStats(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	var stats entities.RecordStats
	if err := json.Unmarshal(data, &stats); err != nil {
		// stale or foreign entry
		s.cache.Delete(ctx, key)
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	return &stats, nil
}

// Invalidate drops the cached stats of an owner
func (s *StatsService) Invalidate(ctx context.Context, ownerID string) {
	s.cache.Delete(ctx, string(constants.CachePrefixRecordStats)+ownerID)
}
