package relayerdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/fundlink/crowdfund-middleware/pkg/db/dao"
	mghelper "github.com/fundlink/crowdfund-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if err := mghelper.CreateSchema(ctx, db,
				(*dao.IndexProgressDao)(nil),
				(*dao.CampaignDao)(nil),
				(*dao.DonationDao)(nil),
				(*dao.WithdrawalDao)(nil),
				(*dao.TransactionAuditDao)(nil),
			); err != nil {
				return err
			}
			if err := mghelper.CreateIndexes(ctx, db, "donations", "campaign_id", "donor"); err != nil {
				return err
			}
			if err := mghelper.CreateIndexes(ctx, db, "withdrawals", "requester", "status"); err != nil {
				return err
			}
			return mghelper.CreateIndexes(ctx, db, "transaction_audits", "actor", "campaign_id")
		},
		func(ctx context.Context, db *bun.DB) error {
			return mghelper.DropTables(ctx, db,
				(*dao.TransactionAuditDao)(nil),
				(*dao.WithdrawalDao)(nil),
				(*dao.DonationDao)(nil),
				(*dao.CampaignDao)(nil),
				(*dao.IndexProgressDao)(nil),
			)
		},
	)
}
