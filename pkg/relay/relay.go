// Package relay turns accumulated custodial wallet balances into on-chain
// donation transactions and tracks them to a terminal state. It runs four
// independent timer-driven cycles: balance monitoring, submission,
// receipt reconciliation, and stuck-transaction replacement.
package relay

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

// ChainClient is the per-network surface the relay consumes
type ChainClient interface {
	Name() string
	Balance(ctx context.Context, address string) (*big.Int, error)
	EstimateFee(ctx context.Context, from string, campaignID int64, value *big.Int) (chain.FeeEstimate, error)
	SubmitDonation(ctx context.Context, key *ecdsa.PrivateKey, campaignID int64, amount *big.Int, fee chain.FeeEstimate) (string, error)
	SubmitCancel(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, tip, cap *big.Int) (string, error)
	Receipt(ctx context.Context, txHash string) (*chain.ReceiptInfo, error)
	NonceCount(ctx context.Context, address string, pending bool) (uint64, error)
	TransactionByHash(ctx context.Context, txHash string) (*chain.TxInfo, error)
}

// Store is the persistence surface the relay consumes
type Store interface {
	ListWallets(ctx context.Context) ([]*dao.CampaignWalletDao, error)
	GetWallet(ctx context.Context, address string) (*dao.CampaignWalletDao, error)

	InsertSweep(ctx context.Context, rec *dao.DirectDonationDao) error
	GetSweep(ctx context.Context, id string) (*dao.DirectDonationDao, error)
	SweepsByStatus(ctx context.Context, status db.SweepStatus) ([]*dao.DirectDonationDao, error)
	HasOpenSweep(ctx context.Context, wallet string) (bool, error)
	LastNonFailedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error)
	LastCompletedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error)
	MarkSweepProcessing(ctx context.Context, id, txHash string) error
	MarkSweepTerminal(ctx context.Context, id string, status db.SweepStatus) error
	UpdateSweepTxHash(ctx context.Context, id, txHash string) error
}

// Relay owns the four relay cycles as independent goroutines
type Relay struct {
	cfg     config.RelayConfig
	monitor *Monitor
	engine  *Engine
	tracker *Tracker
	logger  *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New wires the monitor, engine, and tracker over the given chain clients.
// The clients map is keyed by chain name; a configured wallet whose chain is
// missing from the map is skipped with a warning for the process lifetime.
func New(cfg config.RelayConfig, clients map[string]ChainClient, store Store, masterKey []byte, logger *zap.Logger) *Relay {
	tracker := NewTracker(cfg, clients, store, masterKey, logger)
	return &Relay{
		cfg:     cfg,
		monitor: NewMonitor(cfg, clients, store, logger),
		engine:  NewEngine(cfg, clients, store, masterKey, tracker, logger),
		tracker: tracker,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start rebuilds tracker state from storage and launches the cycle loops
func (r *Relay) Start(ctx context.Context) error {
	if err := r.tracker.Rebuild(ctx); err != nil {
		return err
	}

	r.loop(ctx, r.cfg.MonitorInterval, r.monitor.Scan)
	r.loop(ctx, r.cfg.SubmitInterval, r.engine.SubmitPending)
	r.loop(ctx, r.cfg.ReconcileInterval, r.tracker.Reconcile)
	r.loop(ctx, r.cfg.StuckInterval, r.tracker.ReplaceStuck)

	r.logger.Info("Relay started",
		zap.Duration("monitor_interval", r.cfg.MonitorInterval),
		zap.Duration("submit_interval", r.cfg.SubmitInterval),
		zap.Duration("reconcile_interval", r.cfg.ReconcileInterval),
		zap.Duration("stuck_interval", r.cfg.StuckInterval))
	return nil
}

// Stop signals every cycle loop to exit and waits for them
func (r *Relay) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("Relay stopped")
}

func (r *Relay) loop(ctx context.Context, interval time.Duration, cycle func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				cycle(ctx)
			}
		}
	}()
}
