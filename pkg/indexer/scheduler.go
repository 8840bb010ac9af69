package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

// Mode classifies one ingestion cycle
type Mode string

const (
	// ModeRealtime uses a small batch optimized for low latency
	ModeRealtime Mode = "realtime"
	// ModeCatchup uses a large batch optimized for throughput
	ModeCatchup Mode = "catchup"
)

// Range is an inclusive block range decision for one chain cycle
type Range struct {
	From uint64
	To   uint64
	Mode Mode
}

// ProgressStore is the durable chain -> last-indexed-block mapping
type ProgressStore interface {
	GetProgress(ctx context.Context, chain string) (*dao.IndexProgressDao, error)
	SetProgress(ctx context.Context, chain string, block int64) error
}

// Scheduler decides, per chain and cycle, which block range to process
type Scheduler struct {
	cfg      config.IndexerConfig
	progress ProgressStore
	logger   *zap.Logger
}

// NewScheduler creates a scheduler over the given progress store
func NewScheduler(cfg config.IndexerConfig, progress ProgressStore, logger *zap.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, progress: progress, logger: logger}
}

// Plan computes the next block range for a chain given its current height.
// The second return value is false when the chain has nothing to do this
// cycle. A gap beyond MaxAcceptableGap triggers a jump-ahead: the skipped
// range is abandoned permanently and the progress row is advanced
// immediately, trading event completeness for bounded catch-up work.
func (s *Scheduler) Plan(ctx context.Context, chain string, currentHeight uint64) (Range, bool, error) {
	progress, err := s.progress.GetProgress(ctx, chain)
	if err != nil {
		return Range{}, false, err
	}

	var fromBlock uint64
	jumped := false

	if progress == nil {
		fromBlock = s.lookbackStart(currentHeight)
		s.logger.Info("First run for chain, starting from bounded lookback",
			zap.String("chain", chain),
			zap.Uint64("from_block", fromBlock))
	} else {
		lastIndexed := uint64(progress.LastIndexedBlock)
		var gap uint64
		if currentHeight > lastIndexed {
			gap = currentHeight - lastIndexed
		}

		if gap > s.cfg.MaxAcceptableGap {
			fromBlock = s.lookbackStart(currentHeight)
			if err := s.progress.SetProgress(ctx, chain, int64(fromBlock-1)); err != nil {
				return Range{}, false, fmt.Errorf("persist jump-ahead for %s: %w", chain, err)
			}
			jumped = true
			metrics.JumpAheads.WithLabelValues(chain).Inc()
			s.logger.Warn("Gap exceeds maximum, jumping ahead and abandoning skipped range",
				zap.String("chain", chain),
				zap.Uint64("gap", gap),
				zap.Uint64("last_indexed", lastIndexed),
				zap.Uint64("from_block", fromBlock))
		} else {
			fromBlock = lastIndexed + 1
		}
	}

	if fromBlock > currentHeight {
		return Range{}, false, nil
	}

	// Gap measured against the block just before fromBlock, so a fresh
	// lookback start and a continuation are classified the same way.
	gap := currentHeight - (fromBlock - 1)
	mode := ModeCatchup
	batchSize := s.cfg.CatchupBatchSize
	if !jumped && gap <= s.cfg.RealtimeThreshold {
		mode = ModeRealtime
		batchSize = s.cfg.RealtimeBatchSize
	}

	toBlock := fromBlock + batchSize - 1
	if toBlock > currentHeight {
		toBlock = currentHeight
	}

	return Range{From: fromBlock, To: toBlock, Mode: mode}, true, nil
}

func (s *Scheduler) lookbackStart(currentHeight uint64) uint64 {
	if currentHeight > s.cfg.RecentHistory {
		return currentHeight - s.cfg.RecentHistory
	}
	return 1
}
