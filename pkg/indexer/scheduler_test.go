package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

func schedulerConfig() config.IndexerConfig {
	return config.IndexerConfig{
		RecentHistory:     50000,
		MaxAcceptableGap:  500000,
		RealtimeThreshold: 100,
		RealtimeBatchSize: 50,
		CatchupBatchSize:  2000,
	}
}

func TestPlanFirstRunUsesBoundedLookback(t *testing.T) {
	store := &mockStore{}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(950_000), r.From)
	assert.Equal(t, uint64(951_999), r.To)
	assert.Equal(t, ModeCatchup, r.Mode)
}

func TestPlanFirstRunShortChainStartsAtOne(t *testing.T) {
	store := &mockStore{}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	r, ok, err := s.Plan(context.Background(), "base", 1200)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), r.From)
	assert.Equal(t, uint64(1200), r.To)
}

func TestPlanContinuationRealtime(t *testing.T) {
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 999_980}, nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(999_981), r.From)
	assert.Equal(t, uint64(1_000_000), r.To)
	assert.Equal(t, ModeRealtime, r.Mode)
}

func TestPlanContinuationCatchup(t *testing.T) {
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 600_000}, nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(600_001), r.From)
	assert.Equal(t, uint64(602_000), r.To)
	assert.Equal(t, ModeCatchup, r.Mode)
}

func TestPlanGapWithinMaximumDoesNotJump(t *testing.T) {
	var persisted []int64
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 600_000}, nil
		},
		setProgress: func(ctx context.Context, chain string, block int64) error {
			persisted = append(persisted, block)
			return nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	// gap of 400,000 stays under the 500,000 maximum
	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(600_001), r.From)
	assert.Empty(t, persisted)
}

func TestPlanJumpAheadAbandonsSkippedRange(t *testing.T) {
	var persisted []int64
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 400_000}, nil
		},
		setProgress: func(ctx context.Context, chain string, block int64) error {
			persisted = append(persisted, block)
			return nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	// gap of 600,000 exceeds the 500,000 maximum
	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(950_000), r.From)
	assert.Equal(t, ModeCatchup, r.Mode)
	require.Len(t, persisted, 1)
	assert.Equal(t, int64(949_999), persisted[0])
}

func TestPlanNoWorkWhenCaughtUp(t *testing.T) {
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 1_000_000}, nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	_, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlanToBlockNeverExceedsHeight(t *testing.T) {
	store := &mockStore{
		getProgress: func(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
			return &dao.IndexProgressDao{Chain: chain, LastIndexedBlock: 999_500}, nil
		},
	}
	s := NewScheduler(schedulerConfig(), store, zap.NewNop())

	r, ok, err := s.Plan(context.Background(), "base", 1_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000), r.To)
}
