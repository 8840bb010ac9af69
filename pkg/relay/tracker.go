package relay

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/keys"
)

type trackedTx struct {
	recordID  string
	chain     string
	attempts  int
	firstSeen time.Time
}

// Tracker follows submitted transactions to a terminal state. Its in-memory
// map is an acceleration structure only; the durable source of truth is the
// set of processing records, from which the map is fully rebuilt on restart.
type Tracker struct {
	cfg       config.RelayConfig
	clients   map[string]ChainClient
	store     Store
	masterKey []byte
	logger    *zap.Logger

	mu  sync.Mutex
	txs map[string]*trackedTx
}

// NewTracker creates a lifecycle tracker over the given chain clients
func NewTracker(cfg config.RelayConfig, clients map[string]ChainClient, store Store, masterKey []byte, logger *zap.Logger) *Tracker {
	return &Tracker{
		cfg:       cfg,
		clients:   clients,
		store:     store,
		masterKey: masterKey,
		logger:    logger,
		txs:       make(map[string]*trackedTx),
	}
}

// Track registers a freshly submitted transaction
func (t *Tracker) Track(recordID, chainName, txHash string) {
	t.track(recordID, chainName, txHash, 0, time.Now())
}

func (t *Tracker) track(recordID, chainName, txHash string, attempts int, firstSeen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.txs[txHash] = &trackedTx{
		recordID:  recordID,
		chain:     chainName,
		attempts:  attempts,
		firstSeen: firstSeen,
	}
}

func (t *Tracker) untrack(txHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.txs, txHash)
}

func (t *Tracker) snapshot() map[string]trackedTx {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]trackedTx, len(t.txs))
	for hash, tx := range t.txs {
		out[hash] = *tx
	}
	return out
}

// Rebuild reloads tracker state from processing records after a restart.
// Replacement attempt counts are not persisted, so recovered transactions
// start over at zero attempts.
func (t *Tracker) Rebuild(ctx context.Context) error {
	processing, err := t.store.SweepsByStatus(ctx, db.SweepStatusProcessing)
	if err != nil {
		return fmt.Errorf("rebuild tracker: %w", err)
	}
	for _, rec := range processing {
		if rec.TxHash == nil {
			continue
		}
		t.track(rec.ID, rec.Chain, *rec.TxHash, 0, rec.CreatedAt)
	}
	if len(processing) > 0 {
		t.logger.Info("Recovered in-flight sweeps", zap.Int("count", len(processing)))
	}
	return nil
}

// Reconcile runs one receipt-check cycle over every processing record
func (t *Tracker) Reconcile(ctx context.Context) {
	processing, err := t.store.SweepsByStatus(ctx, db.SweepStatusProcessing)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("tracker", "list_processing").Inc()
		t.logger.Error("Failed to list processing sweeps", zap.Error(err))
		return
	}
	metrics.SweepsOpen.Set(float64(len(processing)))

	for _, rec := range processing {
		if err := t.reconcileRecord(ctx, rec.ID); err != nil {
			metrics.ErrorsTotal.WithLabelValues("tracker", "reconcile").Inc()
			t.logger.Error("Reconciliation failed for sweep",
				zap.String("record_id", rec.ID),
				zap.Error(err))
		}
	}
}

func (t *Tracker) reconcileRecord(ctx context.Context, recordID string) error {
	rec, err := t.store.GetSweep(ctx, recordID)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != string(db.SweepStatusProcessing) || rec.TxHash == nil {
		return nil
	}

	client, ok := t.clients[rec.Chain]
	if !ok {
		return nil
	}

	receipt, err := client.Receipt(ctx, *rec.TxHash)
	if err != nil {
		return err
	}

	if receipt != nil {
		status := db.SweepStatusCompleted
		if !receipt.Success {
			status = db.SweepStatusFailed
		}
		if err := t.store.MarkSweepTerminal(ctx, rec.ID, status); err != nil {
			return err
		}
		t.untrack(*rec.TxHash)
		metrics.SweepsTotal.WithLabelValues(rec.Chain, string(status)).Inc()
		t.logger.Info("Sweep reached terminal state",
			zap.String("record_id", rec.ID),
			zap.String("tx_hash", *rec.TxHash),
			zap.String("status", string(status)),
			zap.Uint64("block", receipt.BlockNumber))
		return nil
	}

	if time.Since(rec.CreatedAt) > t.cfg.FinalTimeout {
		if err := t.store.MarkSweepTerminal(ctx, rec.ID, db.SweepStatusFailed); err != nil {
			return err
		}
		t.untrack(*rec.TxHash)
		metrics.SweepsTotal.WithLabelValues(rec.Chain, string(db.SweepStatusFailed)).Inc()
		t.logger.Warn("Sweep lost, no receipt before final timeout",
			zap.String("record_id", rec.ID),
			zap.String("tx_hash", *rec.TxHash))
	}
	return nil
}

// ReplaceStuck runs one replacement cycle over tracked transactions. A
// transaction past the stuck timeout with attempts below the cap gets a
// same-nonce zero-value self-transfer at a strictly higher fee. Past the
// cap the record stays processing and is only surfaced through the stalled
// gauge; resolving it needs an operator.
func (t *Tracker) ReplaceStuck(ctx context.Context) {
	stalled := 0
	for txHash, tx := range t.snapshot() {
		if time.Since(tx.firstSeen) <= t.cfg.StuckTimeout {
			continue
		}
		if tx.attempts >= t.cfg.MaxReplacements {
			stalled++
			continue
		}
		if err := t.replace(ctx, txHash, tx); err != nil {
			metrics.ErrorsTotal.WithLabelValues("tracker", "replace").Inc()
			t.logger.Error("Stuck transaction replacement failed",
				zap.String("tx_hash", txHash),
				zap.String("record_id", tx.recordID),
				zap.Error(err))
		}
	}
	metrics.SweepsStalled.Set(float64(stalled))
}

func (t *Tracker) replace(ctx context.Context, txHash string, tx trackedTx) error {
	client, ok := t.clients[tx.chain]
	if !ok {
		return nil
	}

	// Reconciliation may have won the race already
	receipt, err := client.Receipt(ctx, txHash)
	if err != nil {
		return err
	}
	if receipt != nil {
		return nil
	}

	info, err := client.TransactionByHash(ctx, txHash)
	if err != nil {
		return err
	}
	if info == nil {
		// Dropped from the pool entirely; the final timeout handles it
		return nil
	}

	rec, err := t.store.GetSweep(ctx, tx.recordID)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != string(db.SweepStatusProcessing) {
		t.untrack(txHash)
		return nil
	}

	wallet, err := t.store.GetWallet(ctx, rec.WalletAddress)
	if err != nil {
		return err
	}
	if wallet == nil {
		return fmt.Errorf("no custodial wallet for address %s", rec.WalletAddress)
	}

	keyBytes, err := keys.DecryptPrivateKey(wallet.EncryptedKey, t.masterKey, wallet.Address)
	if err != nil {
		return err
	}
	walletKey := &keys.WalletKey{Address: wallet.Address, PrivateKey: keyBytes}
	signer, err := walletKey.ECDSA()
	if err != nil {
		return err
	}

	newTip := replacementFee(info.Tip, t.cfg.FeeBoostPercent, t.cfg.FeeBoostStepPercent, tx.attempts)
	newCap := replacementFee(info.FeeCap, t.cfg.FeeBoostPercent, t.cfg.FeeBoostStepPercent, tx.attempts)

	newHash, err := client.SubmitCancel(ctx, signer, info.Nonce, newTip, newCap)
	if err != nil {
		return err
	}

	if err := t.store.UpdateSweepTxHash(ctx, rec.ID, newHash); err != nil {
		return err
	}
	t.untrack(txHash)
	t.track(rec.ID, tx.chain, newHash, tx.attempts+1, time.Now())
	metrics.Replacements.WithLabelValues(tx.chain).Inc()

	t.logger.Warn("Replaced stuck transaction",
		zap.String("record_id", rec.ID),
		zap.String("old_tx_hash", txHash),
		zap.String("new_tx_hash", newHash),
		zap.Uint64("nonce", info.Nonce),
		zap.Int("attempt", tx.attempts+1))
	return nil
}

// replacementFee raises an original fee component by the base boost plus a
// step per prior attempt, always strictly above the original
func replacementFee(original *big.Int, boostPercent, stepPercent int64, attempts int) *big.Int {
	if original == nil {
		return nil
	}
	percent := 100 + boostPercent + stepPercent*int64(attempts)
	bumped := scalePercent(original, percent)
	if bumped.Cmp(original) <= 0 {
		bumped = new(big.Int).Add(original, big.NewInt(1))
	}
	return bumped
}
