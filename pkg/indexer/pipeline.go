package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fundlink/crowdfund-middleware/internal/metrics"
	"github.com/fundlink/crowdfund-middleware/pkg/chain"
	"github.com/fundlink/crowdfund-middleware/pkg/db"
	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
)

// ChainAdapter is the per-network surface the indexer consumes
type ChainAdapter interface {
	Name() string
	IsMain() bool
	Decimals() int32
	CurrentHeight(ctx context.Context) (uint64, error)
	FilterEvents(ctx context.Context, kind chain.EventKind, fromBlock, toBlock uint64) ([]chain.Event, error)
}

// BatchStore commits one ingestion batch atomically with its progress advance
type BatchStore interface {
	ProgressStore
	ApplyBatch(ctx context.Context, chain string, toBlock int64, apply func(ctx context.Context, ops db.BatchOps) error) error
}

// Pipeline fetches contract events for a block range and persists them
type Pipeline struct {
	store  BatchStore
	logger *zap.Logger
}

// NewPipeline creates an event ingestion pipeline over the given store
func NewPipeline(store BatchStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: store, logger: logger}
}

// Process ingests all relevant events in blockRange for one chain. The main
// chain carries the full campaign lifecycle; side chains emit donations only.
// Event writes and the progress advance share one database transaction, so a
// failed batch leaves no trace and is retried verbatim next cycle.
func (p *Pipeline) Process(ctx context.Context, adapter ChainAdapter, blockRange Range) error {
	chainName := adapter.Name()

	kinds := chain.SideChainEventKinds
	if adapter.IsMain() {
		kinds = chain.MainChainEventKinds
	}

	var events []chain.Event
	for _, kind := range kinds {
		batch, err := adapter.FilterEvents(ctx, kind, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter %s events on %s: %w", kind, chainName, err)
		}
		events = append(events, batch...)
	}

	if len(events) == 0 {
		return p.store.SetProgress(ctx, chainName, int64(blockRange.To))
	}

	err := p.store.ApplyBatch(ctx, chainName, int64(blockRange.To), func(ctx context.Context, ops db.BatchOps) error {
		for i := range events {
			if err := p.applyEvent(ctx, ops, adapter, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply batch [%d, %d] on %s: %w", blockRange.From, blockRange.To, chainName, err)
	}

	for _, ev := range events {
		metrics.EventsIngested.WithLabelValues(chainName, string(ev.Kind)).Inc()
	}
	p.logger.Debug("Batch committed",
		zap.String("chain", chainName),
		zap.Uint64("from_block", blockRange.From),
		zap.Uint64("to_block", blockRange.To),
		zap.Int("events", len(events)))
	return nil
}

func (p *Pipeline) applyEvent(ctx context.Context, ops db.BatchOps, adapter ChainAdapter, ev *chain.Event) error {
	chainName := adapter.Name()

	switch ev.Kind {
	case chain.EventCampaignCreated:
		campaign := &dao.CampaignDao{
			ID:           ev.CampaignID,
			Name:         ev.Campaign.Name,
			Description:  ev.Campaign.Description,
			Target:       normalizeAmount(ev.Campaign.Target, adapter.Decimals()).String(),
			SocialLink:   ev.Campaign.SocialLink,
			Image:        ev.Campaign.Image,
			Owner:        ev.Campaign.Owner,
			AmountRaised: "0",
			TxHash:       ev.TxHash,
		}
		inserted, err := ops.InsertCampaign(ctx, campaign)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:      chainName,
			Action:     db.AuditActionCampaignCreated,
			CampaignID: &ev.CampaignID,
			Actor:      ev.Campaign.Owner,
			TxHash:     ev.TxHash,
		})

	case chain.EventCampaignEdited:
		campaign := &dao.CampaignDao{
			ID:          ev.CampaignID,
			Name:        ev.Campaign.Name,
			Description: ev.Campaign.Description,
			Target:      normalizeAmount(ev.Campaign.Target, adapter.Decimals()).String(),
			SocialLink:  ev.Campaign.SocialLink,
			Image:       ev.Campaign.Image,
		}
		if err := ops.UpdateCampaign(ctx, campaign); err != nil {
			return err
		}
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:      chainName,
			Action:     db.AuditActionCampaignEdited,
			CampaignID: &ev.CampaignID,
			Actor:      ev.Campaign.Owner,
			TxHash:     ev.TxHash,
		})

	case chain.EventCampaignEnded:
		if err := ops.EndCampaign(ctx, ev.CampaignID); err != nil {
			return err
		}
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:      chainName,
			Action:     db.AuditActionCampaignEnded,
			CampaignID: &ev.CampaignID,
			TxHash:     ev.TxHash,
		})

	case chain.EventDonationReceived:
		amountUSD := normalizeAmount(ev.Donation.Amount, adapter.Decimals())
		donation := &dao.DonationDao{
			CampaignID: ev.CampaignID,
			Donor:      ev.Donation.Donor,
			AmountUSD:  amountUSD.String(),
			Chain:      chainName,
			TxHash:     ev.TxHash,
			LogIndex:   int64(ev.LogIndex),
			Timestamp:  time.Now(),
		}
		inserted, err := ops.InsertDonation(ctx, donation)
		if err != nil {
			return err
		}
		if !inserted {
			// Redelivered log; the accumulator already saw it.
			return nil
		}
		if err := ops.AccumulateCampaignAmount(ctx, ev.CampaignID, amountUSD.String()); err != nil {
			return err
		}
		amt := amountUSD.String()
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:      chainName,
			Action:     db.AuditActionDonation,
			CampaignID: &ev.CampaignID,
			Actor:      ev.Donation.Donor,
			Amount:     &amt,
			TxHash:     ev.TxHash,
		})

	case chain.EventWithdrawRequested:
		withdrawal := &dao.WithdrawalDao{
			RequestID:     ev.Withdrawal.RequestID,
			Requester:     ev.Withdrawal.Requester,
			Amount:        normalizeAmount(ev.Withdrawal.Amount, adapter.Decimals()).String(),
			Token:         ev.Withdrawal.Token,
			TargetChain:   ev.Withdrawal.TargetChain,
			Status:        string(db.WithdrawalStatusRequested),
			RequestTxHash: ev.TxHash,
		}
		inserted, err := ops.InsertWithdrawal(ctx, withdrawal)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		amt := withdrawal.Amount
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:  chainName,
			Action: db.AuditActionWithdrawRequested,
			Actor:  ev.Withdrawal.Requester,
			Amount: &amt,
			TxHash: ev.TxHash,
		})

	case chain.EventWithdrawProcessed:
		if err := ops.MarkWithdrawalProcessed(ctx, ev.Withdrawal.RequestID, ev.TxHash); err != nil {
			return err
		}
		return ops.InsertAudit(ctx, &dao.TransactionAuditDao{
			Chain:  chainName,
			Action: db.AuditActionWithdrawProcessed,
			Actor:  ev.Withdrawal.Requester,
			TxHash: ev.TxHash,
		})

	default:
		return fmt.Errorf("unknown event kind %q on %s", ev.Kind, chainName)
	}
}

// normalizeAmount converts a raw token amount to its decimal USD value
func normalizeAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
