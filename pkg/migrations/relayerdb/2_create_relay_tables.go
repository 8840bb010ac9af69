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
				(*dao.CampaignWalletDao)(nil),
				(*dao.DirectDonationDao)(nil),
			); err != nil {
				return err
			}
			return mghelper.CreateIndexes(ctx, db, "direct_donation_records", "wallet_address", "status")
		},
		func(ctx context.Context, db *bun.DB) error {
			return mghelper.DropTables(ctx, db,
				(*dao.DirectDonationDao)(nil),
				(*dao.CampaignWalletDao)(nil),
			)
		},
	)
}
