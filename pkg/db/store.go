package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

// ErrNoTransition is returned when a status update matched no row, meaning
// the record was already moved to another state by a concurrent cycle.
var ErrNoTransition = errors.New("db: no matching row for status transition")

// Store provides database operations for the indexer and the relay
type Store struct {
	db *bun.DB
}

// NewStore creates a new database store
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying bun handle (migration runner, tests)
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Index progress

// GetProgress returns the progress row for a chain, or nil when the chain
// has never been indexed.
func (s *Store) GetProgress(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
	progress := new(dao.IndexProgressDao)
	err := s.db.NewSelect().Model(progress).Where("chain = ?", chain).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress for %s: %w", chain, err)
	}
	return progress, nil
}

// SetProgress upserts the last indexed block for a chain. The GREATEST guard
// keeps last_indexed_block monotonically non-decreasing even under a
// misbehaving caller.
func (s *Store) SetProgress(ctx context.Context, chain string, block int64) error {
	return setProgress(ctx, s.db, chain, block)
}

// AllProgress returns progress rows for every chain ever indexed
func (s *Store) AllProgress(ctx context.Context) ([]*dao.IndexProgressDao, error) {
	var rows []*dao.IndexProgressDao
	if err := s.db.NewSelect().Model(&rows).Order("chain ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return rows, nil
}

func setProgress(ctx context.Context, idb bun.IDB, chain string, block int64) error {
	progress := &dao.IndexProgressDao{
		Chain:            chain,
		LastIndexedBlock: block,
		UpdatedAt:        time.Now(),
	}
	_, err := idb.NewInsert().
		Model(progress).
		On("CONFLICT (chain) DO UPDATE").
		Set("last_indexed_block = GREATEST(index_progress.last_indexed_block, EXCLUDED.last_indexed_block)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set progress for %s: %w", chain, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Batched event ingestion

// BatchOps is the write surface available inside one ingestion batch.
// Creation inserts report whether a row was actually written so callers can
// keep additive updates idempotent under event redelivery.
type BatchOps interface {
	InsertCampaign(ctx context.Context, campaign *dao.CampaignDao) (bool, error)
	UpdateCampaign(ctx context.Context, campaign *dao.CampaignDao) error
	EndCampaign(ctx context.Context, id int64) error
	InsertDonation(ctx context.Context, donation *dao.DonationDao) (bool, error)
	AccumulateCampaignAmount(ctx context.Context, campaignID int64, amount string) error
	InsertWithdrawal(ctx context.Context, withdrawal *dao.WithdrawalDao) (bool, error)
	MarkWithdrawalProcessed(ctx context.Context, requestID int64, txHash string) error
	InsertAudit(ctx context.Context, audit *dao.TransactionAuditDao) error
}

// ApplyBatch runs apply and the progress advance to toBlock in a single
// transaction. A failure anywhere rolls back the whole batch, leaving
// index_progress untouched so the batch is retried verbatim next cycle.
func (s *Store) ApplyBatch(ctx context.Context, chain string, toBlock int64, apply func(ctx context.Context, ops BatchOps) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := apply(ctx, &txOps{idb: tx}); err != nil {
			return err
		}
		return setProgress(ctx, tx, chain, toBlock)
	})
}

type txOps struct {
	idb bun.IDB
}

func (o *txOps) InsertCampaign(ctx context.Context, campaign *dao.CampaignDao) (bool, error) {
	res, err := o.idb.NewInsert().Model(campaign).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert campaign %d: %w", campaign.ID, err)
	}
	return rowsAffected(res) > 0, nil
}

func (o *txOps) UpdateCampaign(ctx context.Context, campaign *dao.CampaignDao) error {
	campaign.UpdatedAt = time.Now()
	_, err := o.idb.NewUpdate().
		Model(campaign).
		Column("name", "description", "target", "social_link", "image", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update campaign %d: %w", campaign.ID, err)
	}
	return nil
}

func (o *txOps) EndCampaign(ctx context.Context, id int64) error {
	_, err := o.idb.NewUpdate().
		Model((*dao.CampaignDao)(nil)).
		Set("ended = TRUE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("end campaign %d: %w", id, err)
	}
	return nil
}

func (o *txOps) InsertDonation(ctx context.Context, donation *dao.DonationDao) (bool, error) {
	res, err := o.idb.NewInsert().Model(donation).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert donation %s/%s: %w", donation.Chain, donation.TxHash, err)
	}
	return rowsAffected(res) > 0, nil
}

func (o *txOps) AccumulateCampaignAmount(ctx context.Context, campaignID int64, amount string) error {
	_, err := o.idb.NewUpdate().
		Model((*dao.CampaignDao)(nil)).
		Set("amount_raised = amount_raised + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", campaignID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("accumulate amount for campaign %d: %w", campaignID, err)
	}
	return nil
}

func (o *txOps) InsertWithdrawal(ctx context.Context, withdrawal *dao.WithdrawalDao) (bool, error) {
	res, err := o.idb.NewInsert().Model(withdrawal).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert withdrawal %d: %w", withdrawal.RequestID, err)
	}
	return rowsAffected(res) > 0, nil
}

func (o *txOps) MarkWithdrawalProcessed(ctx context.Context, requestID int64, txHash string) error {
	now := time.Now()
	_, err := o.idb.NewUpdate().
		Model((*dao.WithdrawalDao)(nil)).
		Set("status = ?", string(WithdrawalStatusProcessed)).
		Set("processed_tx_hash = ?", txHash).
		Set("processed_at = ?", now).
		Where("request_id = ?", requestID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark withdrawal %d processed: %w", requestID, err)
	}
	return nil
}

func (o *txOps) InsertAudit(ctx context.Context, audit *dao.TransactionAuditDao) error {
	_, err := o.idb.NewInsert().Model(audit).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// ---------------------------------------------------------------------------
// Campaign wallets

// ListWallets returns every custodial campaign wallet
func (s *Store) ListWallets(ctx context.Context) ([]*dao.CampaignWalletDao, error) {
	var wallets []*dao.CampaignWalletDao
	if err := s.db.NewSelect().Model(&wallets).Order("campaign_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

// GetWallet returns the custodial wallet for an address, or nil
func (s *Store) GetWallet(ctx context.Context, address string) (*dao.CampaignWalletDao, error) {
	wallet := new(dao.CampaignWalletDao)
	err := s.db.NewSelect().Model(wallet).Where("address = ?", address).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %s: %w", address, err)
	}
	return wallet, nil
}

// CreateWallet stores a custodial wallet with its encrypted signing key
func (s *Store) CreateWallet(ctx context.Context, wallet *dao.CampaignWalletDao) error {
	if _, err := s.db.NewInsert().Model(wallet).Exec(ctx); err != nil {
		return fmt.Errorf("create wallet for campaign %d: %w", wallet.CampaignID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Direct donation sweep records

// InsertSweep creates a new direct donation record
func (s *Store) InsertSweep(ctx context.Context, rec *dao.DirectDonationDao) error {
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("insert sweep record: %w", err)
	}
	return nil
}

// GetSweep returns a direct donation record by id, or nil
func (s *Store) GetSweep(ctx context.Context, id string) (*dao.DirectDonationDao, error) {
	rec := new(dao.DirectDonationDao)
	err := s.db.NewSelect().Model(rec).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sweep %s: %w", id, err)
	}
	return rec, nil
}

// SweepsByStatus returns records in the given status, oldest first
func (s *Store) SweepsByStatus(ctx context.Context, status SweepStatus) ([]*dao.DirectDonationDao, error) {
	var recs []*dao.DirectDonationDao
	err := s.db.NewSelect().
		Model(&recs).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s sweeps: %w", status, err)
	}
	return recs, nil
}

// HasOpenSweep reports whether a wallet has a pending or processing record
func (s *Store) HasOpenSweep(ctx context.Context, wallet string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*dao.DirectDonationDao)(nil)).
		Where("wallet_address = ?", wallet).
		Where("status IN (?, ?)", string(SweepStatusPending), string(SweepStatusProcessing)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check open sweep for %s: %w", wallet, err)
	}
	return exists, nil
}

// LastNonFailedSweep returns the most recent record for a wallet whose status
// is not failed, or nil
func (s *Store) LastNonFailedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error) {
	rec := new(dao.DirectDonationDao)
	err := s.db.NewSelect().
		Model(rec).
		Where("wallet_address = ?", wallet).
		Where("status != ?", string(SweepStatusFailed)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last non-failed sweep for %s: %w", wallet, err)
	}
	return rec, nil
}

// LastCompletedSweep returns the most recent completed record for a wallet, or nil
func (s *Store) LastCompletedSweep(ctx context.Context, wallet string) (*dao.DirectDonationDao, error) {
	rec := new(dao.DirectDonationDao)
	err := s.db.NewSelect().
		Model(rec).
		Where("wallet_address = ?", wallet).
		Where("status = ?", string(SweepStatusCompleted)).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last completed sweep for %s: %w", wallet, err)
	}
	return rec, nil
}

// MarkSweepProcessing atomically moves a pending record to processing and
// stores the submission tx hash. Returns ErrNoTransition when the record was
// no longer pending.
func (s *Store) MarkSweepProcessing(ctx context.Context, id, txHash string) error {
	res, err := s.db.NewUpdate().
		Model((*dao.DirectDonationDao)(nil)).
		Set("status = ?", string(SweepStatusProcessing)).
		Set("tx_hash = ?", txHash).
		Where("id = ?", id).
		Where("status = ?", string(SweepStatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark sweep %s processing: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return ErrNoTransition
	}
	return nil
}

// MarkSweepTerminal moves a record to completed or failed and stamps
// processed_at
func (s *Store) MarkSweepTerminal(ctx context.Context, id string, status SweepStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("mark sweep %s: %s is not a terminal status", id, status)
	}
	_, err := s.db.NewUpdate().
		Model((*dao.DirectDonationDao)(nil)).
		Set("status = ?", string(status)).
		Set("processed_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark sweep %s %s: %w", id, status, err)
	}
	return nil
}

// UpdateSweepTxHash replaces the stored tx hash after a same-nonce replacement
func (s *Store) UpdateSweepTxHash(ctx context.Context, id, txHash string) error {
	_, err := s.db.NewUpdate().
		Model((*dao.DirectDonationDao)(nil)).
		Set("tx_hash = ?", txHash).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update sweep %s tx hash: %w", id, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read helpers for the query API collaborator

// ListCampaigns returns the most recently updated campaigns
func (s *Store) ListCampaigns(ctx context.Context, limit int) ([]*dao.CampaignDao, error) {
	var campaigns []*dao.CampaignDao
	err := s.db.NewSelect().Model(&campaigns).Order("updated_at DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return campaigns, nil
}

// ListDonations returns the most recent donations for a campaign
func (s *Store) ListDonations(ctx context.Context, campaignID int64, limit int) ([]*dao.DonationDao, error) {
	var donations []*dao.DonationDao
	err := s.db.NewSelect().
		Model(&donations).
		Where("campaign_id = ?", campaignID).
		Order("timestamp DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donations for campaign %d: %w", campaignID, err)
	}
	return donations, nil
}

// ListAudits returns the most recent audit rows for an actor address
func (s *Store) ListAudits(ctx context.Context, actor string, limit int) ([]*dao.TransactionAuditDao, error) {
	var audits []*dao.TransactionAuditDao
	err := s.db.NewSelect().
		Model(&audits).
		Where("actor = ?", actor).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audits for %s: %w", actor, err)
	}
	return audits, nil
}
