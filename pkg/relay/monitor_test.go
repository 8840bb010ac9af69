package relay

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

func TestScanQueuesSweepForFundedWallet(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	store.wallets = []*dao.CampaignWalletDao{testWallet(t, masterKey, 7, "base")}

	balance, _ := new(big.Int).SetString("5000000000000000000", 10) // 5 units
	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			return balance, nil
		},
	}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	require.Len(t, store.inserted, 1)
	rec := store.inserted[0]
	assert.Equal(t, int64(7), rec.CampaignID)
	assert.Equal(t, "base", rec.Chain)
	assert.Equal(t, balance.String(), rec.Amount)
	assert.Equal(t, string(db.SweepStatusPending), rec.Status)
	assert.Contains(t, rec.Source, "balance:")
	assert.Nil(t, rec.TxHash)
}

func TestScanSkipsWalletWithOpenSweep(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	wallet := testWallet(t, masterKey, 7, "base")
	store.wallets = []*dao.CampaignWalletDao{wallet}
	store.addSweep(&dao.DirectDonationDao{
		ID:            "open",
		WalletAddress: wallet.Address,
		Status:        string(db.SweepStatusProcessing),
		CreatedAt:     time.Now(),
	})

	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			t.Fatal("balance must not be queried for a wallet with an open sweep")
			return nil, nil
		},
	}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Empty(t, store.inserted)
}

func TestScanRespectsCooldown(t *testing.T) {
	cfg := testRelayConfig()
	cfg.Cooldown = 10 * time.Minute

	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	wallet := testWallet(t, masterKey, 7, "base")
	store.wallets = []*dao.CampaignWalletDao{wallet}
	store.addSweep(&dao.DirectDonationDao{
		ID:            "recent",
		WalletAddress: wallet.Address,
		Status:        string(db.SweepStatusCompleted),
		Amount:        "1",
		CreatedAt:     time.Now().Add(-time.Minute),
	})

	balance, _ := new(big.Int).SetString("5000000000000000000", 10)
	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			return balance, nil
		},
	}

	m := NewMonitor(cfg, map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Empty(t, store.inserted)
}

func TestScanSkipsBalanceBelowMinimum(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	store.wallets = []*dao.CampaignWalletDao{testWallet(t, masterKey, 7, "base")}

	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			return big.NewInt(999_999_999), nil // far below the 1 unit floor
		},
	}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Empty(t, store.inserted)
}

func TestScanSkipsResidualChangeAfterCompletedSweep(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	wallet := testWallet(t, masterKey, 7, "base")
	store.wallets = []*dao.CampaignWalletDao{wallet}
	store.addSweep(&dao.DirectDonationDao{
		ID:            "done",
		WalletAddress: wallet.Address,
		Status:        string(db.SweepStatusCompleted),
		Amount:        "5000000000000000000",
		CreatedAt:     time.Now().Add(-time.Hour),
	})

	// Balance equals the swept amount plus less than the dust margin
	balance, _ := new(big.Int).SetString("5000000000000000001", 10)
	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			return balance, nil
		},
	}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Empty(t, store.inserted)
}

func TestScanQueuesWhenBalanceClearsDustMargin(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	wallet := testWallet(t, masterKey, 7, "base")
	store.wallets = []*dao.CampaignWalletDao{wallet}
	store.addSweep(&dao.DirectDonationDao{
		ID:            "done",
		WalletAddress: wallet.Address,
		Status:        string(db.SweepStatusCompleted),
		Amount:        "5000000000000000000",
		CreatedAt:     time.Now().Add(-time.Hour),
	})

	// Swept amount plus dust margin plus one
	balance, _ := new(big.Int).SetString("5001000000000000001", 10)
	client := &mockClient{
		name: "base",
		balance: func(ctx context.Context, address string) (*big.Int, error) {
			return balance, nil
		},
	}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{"base": client}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Len(t, store.inserted, 1)
}

func TestScanSkipsWalletWithoutChainClient(t *testing.T) {
	masterKey := testMasterKey(t)
	store := newMockRelayStore()
	store.wallets = []*dao.CampaignWalletDao{testWallet(t, masterKey, 7, "unknown")}

	m := NewMonitor(testRelayConfig(), map[string]ChainClient{}, store, zap.NewNop())
	m.Scan(context.Background())

	assert.Empty(t, store.inserted)
}
