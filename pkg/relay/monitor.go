package relay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

// Monitor periodically inspects custodial wallet balances and queues a
// pending sweep record for every wallet worth sweeping
type Monitor struct {
	cfg     config.RelayConfig
	clients map[string]ChainClient
	store   Store
	logger  *zap.Logger

	minSweep   *big.Int
	dustMargin *big.Int
}

// NewMonitor creates a balance monitor over the given chain clients
func NewMonitor(cfg config.RelayConfig, clients map[string]ChainClient, store Store, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		clients:    clients,
		store:      store,
		logger:     logger,
		minSweep:   mustParseWei(cfg.MinSweepWei),
		dustMargin: mustParseWei(cfg.DustMarginWei),
	}
}

// Scan runs one monitoring cycle over every custodial wallet. A failing
// wallet is logged and skipped; it never blocks the rest of the scan.
func (m *Monitor) Scan(ctx context.Context) {
	wallets, err := m.store.ListWallets(ctx)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("monitor", "list_wallets").Inc()
		m.logger.Error("Failed to list custodial wallets", zap.Error(err))
		return
	}

	for _, wallet := range wallets {
		if err := m.scanWallet(ctx, wallet); err != nil {
			metrics.ErrorsTotal.WithLabelValues("monitor", "scan").Inc()
			m.logger.Error("Wallet scan failed",
				zap.String("wallet", wallet.Address),
				zap.String("chain", wallet.Chain),
				zap.Error(err))
		}
	}
}

func (m *Monitor) scanWallet(ctx context.Context, wallet *dao.CampaignWalletDao) error {
	client, ok := m.clients[wallet.Chain]
	if !ok {
		m.logger.Warn("No chain client for wallet, skipping",
			zap.String("wallet", wallet.Address),
			zap.String("chain", wallet.Chain))
		return nil
	}

	open, err := m.store.HasOpenSweep(ctx, wallet.Address)
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	last, err := m.store.LastNonFailedSweep(ctx, wallet.Address)
	if err != nil {
		return err
	}
	if last != nil && time.Since(last.CreatedAt) < m.cfg.Cooldown {
		return nil
	}

	balance, err := client.Balance(ctx, wallet.Address)
	if err != nil {
		return err
	}
	if balance.Cmp(m.minSweep) < 0 {
		return nil
	}

	// A swept wallet keeps residual change; only a balance clearly above
	// the last completed sweep amount is new money.
	completed, err := m.store.LastCompletedSweep(ctx, wallet.Address)
	if err != nil {
		return err
	}
	if completed != nil {
		floor, ok := new(big.Int).SetString(completed.Amount, 10)
		if !ok {
			return fmt.Errorf("invalid amount %q on sweep %s", completed.Amount, completed.ID)
		}
		floor.Add(floor, m.dustMargin)
		if balance.Cmp(floor) <= 0 {
			return nil
		}
	}

	rec := &dao.DirectDonationDao{
		ID:            uuid.NewString(),
		CampaignID:    wallet.CampaignID,
		Chain:         wallet.Chain,
		WalletAddress: wallet.Address,
		Amount:        balance.String(),
		Status:        string(db.SweepStatusPending),
		Source:        "balance:" + uuid.NewString(),
		CreatedAt:     time.Now(),
	}
	if err := m.store.InsertSweep(ctx, rec); err != nil {
		return err
	}

	m.logger.Info("Queued balance sweep",
		zap.String("record_id", rec.ID),
		zap.String("wallet", wallet.Address),
		zap.String("chain", wallet.Chain),
		zap.String("amount", rec.Amount))
	return nil
}

func mustParseWei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	return v
}
