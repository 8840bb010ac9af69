package dao

import "time"

// DirectDonationDao is a data access object that maps directly to the 'direct_donation_records' table in PostgreSQL.
// This is the relay's state-machine entity: pending -> processing ->
// {completed, failed}. Amounts are native units (wei) as decimal strings.
type DirectDonationDao struct {
	tableName     struct{}   `bun:"table:direct_donation_records"` // nolint
	ID            string     `json:"id" bun:",pk,type:varchar(36)"`
	CampaignID    int64      `json:"campaign_id" bun:",notnull"`
	Chain         string     `json:"chain" bun:",notnull,type:varchar(100)"`
	WalletAddress string     `json:"wallet_address" bun:",notnull,type:varchar(66)"`
	Amount        string     `json:"amount" bun:",notnull,type:numeric(38,0)"`
	Status        string     `json:"status" bun:",notnull,type:varchar(20)"`
	Source        string     `json:"source" bun:",notnull,type:varchar(100)"`
	TxHash        *string    `json:"tx_hash,omitempty" bun:"tx_hash,type:varchar(66)"`
	CreatedAt     time.Time  `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" bun:"processed_at"`
}
