package indexer

import (
	"context"

	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

type mockAdapter struct {
	name          string
	isMain        bool
	decimals      int32
	currentHeight func(ctx context.Context) (uint64, error)
	filterEvents  func(ctx context.Context, kind chain.EventKind, fromBlock, toBlock uint64) ([]chain.Event, error)
}

func (m *mockAdapter) Name() string   { return m.name }
func (m *mockAdapter) IsMain() bool   { return m.isMain }
func (m *mockAdapter) Decimals() int32 {
	if m.decimals == 0 {
		return 18
	}
	return m.decimals
}

func (m *mockAdapter) CurrentHeight(ctx context.Context) (uint64, error) {
	if m.currentHeight != nil {
		return m.currentHeight(ctx)
	}
	return 0, nil
}

func (m *mockAdapter) FilterEvents(ctx context.Context, kind chain.EventKind, fromBlock, toBlock uint64) ([]chain.Event, error) {
	if m.filterEvents != nil {
		return m.filterEvents(ctx, kind, fromBlock, toBlock)
	}
	return nil, nil
}

type mockStore struct {
	getProgress func(ctx context.Context, chain string) (*dao.IndexProgressDao, error)
	setProgress func(ctx context.Context, chain string, block int64) error
	applyBatch  func(ctx context.Context, chain string, toBlock int64, apply func(ctx context.Context, ops db.BatchOps) error) error
}

func (m *mockStore) GetProgress(ctx context.Context, chain string) (*dao.IndexProgressDao, error) {
	if m.getProgress != nil {
		return m.getProgress(ctx, chain)
	}
	return nil, nil
}

func (m *mockStore) SetProgress(ctx context.Context, chain string, block int64) error {
	if m.setProgress != nil {
		return m.setProgress(ctx, chain, block)
	}
	return nil
}

func (m *mockStore) ApplyBatch(ctx context.Context, chain string, toBlock int64, apply func(ctx context.Context, ops db.BatchOps) error) error {
	if m.applyBatch != nil {
		return m.applyBatch(ctx, chain, toBlock, apply)
	}
	return apply(ctx, &mockBatchOps{})
}

// mockBatchOps records every write issued inside a batch
type mockBatchOps struct {
	campaigns         []*dao.CampaignDao
	updates           []*dao.CampaignDao
	ended             []int64
	donations         []*dao.DonationDao
	accumulations     map[int64][]string
	withdrawals       []*dao.WithdrawalDao
	processed         []int64
	audits            []*dao.TransactionAuditDao
	duplicateDonation bool
	duplicateCampaign bool
}

func (m *mockBatchOps) InsertCampaign(ctx context.Context, campaign *dao.CampaignDao) (bool, error) {
	m.campaigns = append(m.campaigns, campaign)
	return !m.duplicateCampaign, nil
}

func (m *mockBatchOps) UpdateCampaign(ctx context.Context, campaign *dao.CampaignDao) error {
	m.updates = append(m.updates, campaign)
	return nil
}

func (m *mockBatchOps) EndCampaign(ctx context.Context, id int64) error {
	m.ended = append(m.ended, id)
	return nil
}

func (m *mockBatchOps) InsertDonation(ctx context.Context, donation *dao.DonationDao) (bool, error) {
	m.donations = append(m.donations, donation)
	return !m.duplicateDonation, nil
}

func (m *mockBatchOps) AccumulateCampaignAmount(ctx context.Context, campaignID int64, amount string) error {
	if m.accumulations == nil {
		m.accumulations = make(map[int64][]string)
	}
	m.accumulations[campaignID] = append(m.accumulations[campaignID], amount)
	return nil
}

func (m *mockBatchOps) InsertWithdrawal(ctx context.Context, withdrawal *dao.WithdrawalDao) (bool, error) {
	m.withdrawals = append(m.withdrawals, withdrawal)
	return true, nil
}

func (m *mockBatchOps) MarkWithdrawalProcessed(ctx context.Context, requestID int64, txHash string) error {
	m.processed = append(m.processed, requestID)
	return nil
}

func (m *mockBatchOps) InsertAudit(ctx context.Context, audit *dao.TransactionAuditDao) error {
	m.audits = append(m.audits, audit)
	return nil
}
