package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/config"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
	"github.com/fundlink/crowdfund-middleware/pkg/keys"
)

// errSkipCycle marks a wallet that must wait for a later cycle rather than
// fail its record
var errSkipCycle = errors.New("relay: wallet busy, retry next cycle")

// Engine turns pending sweep records into submitted donation transactions
type Engine struct {
	cfg       config.RelayConfig
	clients   map[string]ChainClient
	store     Store
	masterKey []byte
	tracker   *Tracker
	logger    *zap.Logger

	minSweep *big.Int
}

// NewEngine creates a submission engine over the given chain clients
func NewEngine(cfg config.RelayConfig, clients map[string]ChainClient, store Store, masterKey []byte, tracker *Tracker, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		clients:   clients,
		store:     store,
		masterKey: masterKey,
		tracker:   tracker,
		logger:    logger,
		minSweep:  mustParseWei(cfg.MinSweepWei),
	}
}

// SubmitPending runs one submission cycle over every pending record. Any
// error while handling a record marks it failed; ambiguous or busy wallets
// are left pending for the next cycle.
func (e *Engine) SubmitPending(ctx context.Context) {
	pending, err := e.store.SweepsByStatus(ctx, db.SweepStatusPending)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("engine", "list_pending").Inc()
		e.logger.Error("Failed to list pending sweeps", zap.Error(err))
		return
	}

	for _, rec := range pending {
		err := e.submit(ctx, rec)
		if errors.Is(err, errSkipCycle) {
			continue
		}
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues("engine", "submit").Inc()
			metrics.SweepsTotal.WithLabelValues(rec.Chain, string(db.SweepStatusFailed)).Inc()
			e.logger.Error("Sweep submission failed, marking record failed",
				zap.String("record_id", rec.ID),
				zap.String("wallet", rec.WalletAddress),
				zap.Error(err))
			if markErr := e.store.MarkSweepTerminal(ctx, rec.ID, db.SweepStatusFailed); markErr != nil {
				e.logger.Error("Failed to mark sweep failed",
					zap.String("record_id", rec.ID),
					zap.Error(markErr))
			}
		}
	}
}

func (e *Engine) submit(ctx context.Context, rec *dao.DirectDonationDao) error {
	// Re-check against a concurrent cycle having already taken this record
	fresh, err := e.store.GetSweep(ctx, rec.ID)
	if err != nil {
		return err
	}
	if fresh == nil || fresh.Status != string(db.SweepStatusPending) {
		return errSkipCycle
	}

	client, ok := e.clients[rec.Chain]
	if !ok {
		e.logger.Warn("No chain client for pending sweep, leaving record untouched",
			zap.String("record_id", rec.ID),
			zap.String("chain", rec.Chain))
		return errSkipCycle
	}

	wallet, err := e.store.GetWallet(ctx, rec.WalletAddress)
	if err != nil {
		return err
	}
	if wallet == nil {
		return fmt.Errorf("no custodial wallet for address %s", rec.WalletAddress)
	}

	// An outstanding transaction would collide on the nonce
	pendingNonce, err := client.NonceCount(ctx, wallet.Address, true)
	if err != nil {
		return err
	}
	confirmedNonce, err := client.NonceCount(ctx, wallet.Address, false)
	if err != nil {
		return err
	}
	if pendingNonce != confirmedNonce {
		e.logger.Debug("Wallet has an outstanding transaction, skipping this cycle",
			zap.String("wallet", wallet.Address),
			zap.Uint64("pending_nonce", pendingNonce),
			zap.Uint64("confirmed_nonce", confirmedNonce))
		return errSkipCycle
	}

	balance, err := client.Balance(ctx, wallet.Address)
	if err != nil {
		return err
	}
	if balance.Cmp(e.minSweep) < 0 {
		return fmt.Errorf("balance %s below sweep floor %s", balance, e.minSweep)
	}

	donation := donationAmount(balance, e.cfg.GasReservePercent)
	if donation.Sign() <= 0 {
		return fmt.Errorf("balance %s leaves no donatable amount after gas reserve", balance)
	}

	fee, err := client.EstimateFee(ctx, wallet.Address, rec.CampaignID, donation)
	if err != nil {
		return err
	}
	fee = boostFee(fee, e.cfg.FeeBoostPercent, e.cfg.GasBufferPercent)

	keyBytes, err := keys.DecryptPrivateKey(wallet.EncryptedKey, e.masterKey, wallet.Address)
	if err != nil {
		return err
	}
	walletKey := &keys.WalletKey{Address: wallet.Address, PrivateKey: keyBytes}
	signer, err := walletKey.ECDSA()
	if err != nil {
		return err
	}
	if crypto.PubkeyToAddress(signer.PublicKey).Hex() != wallet.Address {
		return fmt.Errorf("decrypted key does not match wallet address %s", wallet.Address)
	}

	txHash, err := client.SubmitDonation(ctx, signer, rec.CampaignID, donation, fee)
	if err != nil {
		return err
	}

	if err := e.store.MarkSweepProcessing(ctx, rec.ID, txHash); err != nil {
		if errors.Is(err, db.ErrNoTransition) {
			// Broadcast went out but another cycle moved the record;
			// reconciliation resolves the outcome either way.
			e.logger.Warn("Sweep record changed state during submission",
				zap.String("record_id", rec.ID),
				zap.String("tx_hash", txHash))
			return errSkipCycle
		}
		return err
	}
	e.tracker.Track(rec.ID, rec.Chain, txHash)

	e.logger.Info("Donation submitted",
		zap.String("record_id", rec.ID),
		zap.String("wallet", wallet.Address),
		zap.String("chain", rec.Chain),
		zap.Int64("campaign_id", rec.CampaignID),
		zap.String("amount", donation.String()),
		zap.String("tx_hash", txHash))
	return nil
}

// donationAmount computes balance minus the configured gas reserve
func donationAmount(balance *big.Int, reservePercent int64) *big.Int {
	reserve := new(big.Int).Mul(balance, big.NewInt(reservePercent))
	reserve.Div(reserve, big.NewInt(100))
	return new(big.Int).Sub(balance, reserve)
}

// boostFee biases the estimate toward fast inclusion: both fee components
// are raised by the boost percent and the gas limit by the buffer percent
func boostFee(fee chain.FeeEstimate, boostPercent, bufferPercent int64) chain.FeeEstimate {
	return chain.FeeEstimate{
		GasLimit: fee.GasLimit * uint64(100+bufferPercent) / 100,
		BaseFee:  scalePercent(fee.BaseFee, 100+boostPercent),
		Tip:      scalePercent(fee.Tip, 100+boostPercent),
	}
}

func scalePercent(v *big.Int, percent int64) *big.Int {
	if v == nil {
		return nil
	}
	scaled := new(big.Int).Mul(v, big.NewInt(percent))
	return scaled.Div(scaled, big.NewInt(100))
}
