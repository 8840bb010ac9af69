package relay

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
	"github.com/fundlink/crowdfund-middleware/pkg/keys"
)

type mockClient struct {
	name              string
	balance           func(ctx context.Context, address string) (*big.Int, error)
	estimateFee       func(ctx context.Context, from string, campaignID int64, value *big.Int) (chain.FeeEstimate, error)
	submitDonation    func(ctx context.Context, key *ecdsa.PrivateKey, campaignID int64, amount *big.Int, fee chain.FeeEstimate) (string, error)
	submitCancel      func(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, tip, cap *big.Int) (string, error)
	receipt           func(ctx context.Context, txHash string) (*chain.ReceiptInfo, error)
	nonceCount        func(ctx context.Context, address string, pending bool) (uint64, error)
	transactionByHash func(ctx context.Context, txHash string) (*chain.TxInfo, error)
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Balance(ctx context.Context, address string) (*big.Int, error) {
	if m.balance != nil {
		return m.balance(ctx, address)
	}
	return big.NewInt(0), nil
}

func (m *mockClient) EstimateFee(ctx context.Context, from string, campaignID int64, value *big.Int) (chain.FeeEstimate, error) {
	if m.estimateFee != nil {
		return m.estimateFee(ctx, from, campaignID, value)
	}
	return chain.FeeEstimate{GasLimit: 100_000, BaseFee: big.NewInt(1_000_000_000), Tip: big.NewInt(100_000_000)}, nil
}

func (m *mockClient) SubmitDonation(ctx context.Context, key *ecdsa.PrivateKey, campaignID int64, amount *big.Int, fee chain.FeeEstimate) (string, error) {
	if m.submitDonation != nil {
		return m.submitDonation(ctx, key, campaignID, amount, fee)
	}
	return "0xsubmitted", nil
}

func (m *mockClient) SubmitCancel(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64, tip, cap *big.Int) (string, error) {
	if m.submitCancel != nil {
		return m.submitCancel(ctx, key, nonce, tip, cap)
	}
	return "0xreplacement", nil
}

func (m *mockClient) Receipt(ctx context.Context, txHash string) (*chain.ReceiptInfo, error) {
	if m.receipt != nil {
		return m.receipt(ctx, txHash)
	}
	return nil, nil
}

func (m *mockClient) NonceCount(ctx context.Context, address string, pending bool) (uint64, error) {
	if m.nonceCount != nil {
		return m.nonceCount(ctx, address, pending)
	}
	return 0, nil
}

func (m *mockClient) TransactionByHash(ctx context.Context, txHash string) (*chain.TxInfo, error) {
	if m.transactionByHash != nil {
		return m.transactionByHash(ctx, txHash)
	}
	return nil, nil
}

// mockRelayStore keeps wallets and sweep records in memory
type mockRelayStore struct {
	wallets []*dao.CampaignWalletDao
	sweeps  map[string]*dao.DirectDonationDao

	inserted    []*dao.DirectDonationDao
	transitions []string
}

func newMockRelayStore() *mockRelayStore {
	return &mockRelayStore{sweeps: make(map[string]*dao.DirectDonationDao)}
}

func (m *mockRelayStore) addSweep(rec *dao.DirectDonationDao) {
	m.sweeps[rec.ID] = rec
}

func (m *mockRelayStore) ListWallets(ctx context.Context) ([]*dao.CampaignWalletDao, error) {
	return m.wallets, nil
}

func (m *mockRelayStore) GetWallet(ctx context.Context, address string) (*dao.CampaignWalletDao, error) {
	for _, w := range m.wallets {
		if w.Address == address {
			return w, nil
		}
	}
	return nil, nil
}

func (m *mockRelayStore) InsertSweep(ctx context.Context, rec *dao.DirectDonationDao) error {
	m.sweeps[rec.ID] = rec
	m.inserted = append(m.inserted, rec)
	return nil
}

func (m *mockRelayStore) GetSweep(ctx context.Context, id string) (*dao.DirectDonationDao, error) {
	return m.sweeps[id], nil
}

func (m *mockRelayStore) SweepsByStatus(ctx context.Context, status db.SweepStatus) ([]*dao.DirectDonationDao, error) {
	var out []*dao.DirectDonationDao
	for _, rec := range m.sweeps {
		if rec.Status == string(status) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockRelayStore) HasOpenSweep(ctx context.Context, wallet string) (bool, error) {
	for _, rec := range m.sweeps {
		if rec.WalletAddress == wallet &&
			(rec.Status == string(db.SweepStatusPending) || rec.Status == string(db.SweepStatusProcessing)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRelayStore) LastNonFailedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error) {
	var latest *dao.DirectDonationDao
	for _, rec := range m.sweeps {
		if rec.WalletAddress != wallet || rec.Status == string(db.SweepStatusFailed) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest, nil
}

func (m *mockRelayStore) LastCompletedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error) {
	var latest *dao.DirectDonationDao
	for _, rec := range m.sweeps {
		if rec.WalletAddress != wallet || rec.Status != string(db.SweepStatusCompleted) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	return latest, nil
}

func (m *mockRelayStore) MarkSweepProcessing(ctx context.Context, id, txHash string) error {
	rec, ok := m.sweeps[id]
	if !ok || rec.Status != string(db.SweepStatusPending) {
		return db.ErrNoTransition
	}
	rec.Status = string(db.SweepStatusProcessing)
	rec.TxHash = &txHash
	m.transitions = append(m.transitions, id+":processing")
	return nil
}

func (m *mockRelayStore) MarkSweepTerminal(ctx context.Context, id string, status db.SweepStatus) error {
	rec, ok := m.sweeps[id]
	if !ok {
		return db.ErrNoTransition
	}
	rec.Status = string(status)
	m.transitions = append(m.transitions, id+":"+string(status))
	return nil
}

func (m *mockRelayStore) UpdateSweepTxHash(ctx context.Context, id, txHash string) error {
	rec, ok := m.sweeps[id]
	if !ok {
		return db.ErrNoTransition
	}
	rec.TxHash = &txHash
	return nil
}

func testRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		MinSweepWei:         "1000000000000000000", // 1 unit
		DustMarginWei:       "1000000000000000",
		Cooldown:            0,
		GasReservePercent:   35,
		FeeBoostPercent:     20,
		FeeBoostStepPercent: 15,
		GasBufferPercent:    25,
		StuckTimeout:        5 * time.Minute,
		FinalTimeout:        30 * time.Minute,
		MaxReplacements:     3,
	}
}

// testWallet generates a custodial wallet whose key is encrypted under
// masterKey, exactly as the wallet provisioning path stores it
func testWallet(t *testing.T, masterKey []byte, campaignID int64, chainName string) *dao.CampaignWalletDao {
	t.Helper()
	walletKey, err := keys.GenerateWalletKey()
	require.NoError(t, err)
	encrypted, err := keys.EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)
	return &dao.CampaignWalletDao{
		CampaignID:   campaignID,
		Chain:        chainName,
		Address:      walletKey.Address,
		EncryptedKey: encrypted,
	}
}

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	masterKey, err := hex.DecodeString("6368616e676520746869732070617373776f726420746f206120736563726574")
	require.NoError(t, err)
	return masterKey
}
