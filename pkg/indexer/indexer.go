package indexer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
)

// Indexer drives event ingestion across all configured chains
type Indexer struct {
	cfg       config.IndexerConfig
	adapters  []ChainAdapter
	scheduler *Scheduler
	pipeline  *Pipeline
	progress  ProgressStore
	logger    *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an indexer over the given chain adapters
func New(cfg config.IndexerConfig, adapters []ChainAdapter, store BatchStore, logger *zap.Logger) *Indexer {
	return &Indexer{
		cfg:       cfg,
		adapters:  adapters,
		scheduler: NewScheduler(cfg, store, logger),
		pipeline:  NewPipeline(store, logger),
		progress:  store,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the periodic sync loop
func (ix *Indexer) Start(ctx context.Context) {
	ix.wg.Add(1)
	go ix.run(ctx)
	ix.logger.Info("Indexer started",
		zap.Int("chains", len(ix.adapters)),
		zap.Duration("interval", ix.cfg.Interval))
}

// Stop signals the sync loop to exit and waits for it
func (ix *Indexer) Stop() {
	close(ix.stopCh)
	ix.wg.Wait()
	ix.logger.Info("Indexer stopped")
}

func (ix *Indexer) run(ctx context.Context) {
	defer ix.wg.Done()

	ticker := time.NewTicker(ix.cfg.Interval)
	defer ticker.Stop()

	ix.SyncAll(ctx)
	for {
		select {
		case <-ix.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.SyncAll(ctx)
		}
	}
}

// SyncAll runs one ingestion cycle for every chain. A failing chain is
// logged and skipped; it never blocks the others.
func (ix *Indexer) SyncAll(ctx context.Context) {
	for _, adapter := range ix.adapters {
		if err := ix.syncChain(ctx, adapter); err != nil {
			metrics.ErrorsTotal.WithLabelValues("indexer", "sync").Inc()
			ix.logger.Error("Chain sync cycle failed",
				zap.String("chain", adapter.Name()),
				zap.Error(err))
		}
	}
}

func (ix *Indexer) syncChain(ctx context.Context, adapter ChainAdapter) error {
	chainName := adapter.Name()

	currentHeight, err := adapter.CurrentHeight(ctx)
	if err != nil {
		return err
	}

	blockRange, ok, err := ix.scheduler.Plan(ctx, chainName, currentHeight)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := ix.pipeline.Process(ctx, adapter, blockRange); err != nil {
		return err
	}

	metrics.BlocksProcessed.WithLabelValues(chainName).Add(float64(blockRange.To - blockRange.From + 1))
	metrics.LastIndexedBlock.WithLabelValues(chainName).Set(float64(blockRange.To))
	return nil
}
