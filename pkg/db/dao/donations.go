package dao

import "time"

// DonationDao is a data access object that maps directly to the 'donations' table in PostgreSQL.
// One row per on-chain donation event; (chain, tx_hash, log_index) is unique
// so redelivered logs collapse into the existing row.
type DonationDao struct {
	tableName  struct{}  `bun:"table:donations"` // nolint
	ID         int64     `json:"id" bun:",pk,autoincrement"`
	CampaignID int64     `json:"campaign_id" bun:",notnull"`
	Donor      string    `json:"donor" bun:",notnull,type:varchar(66)"`
	AmountUSD  string    `json:"amount_usd" bun:",notnull,type:numeric(38,18)"`
	Chain      string    `json:"chain" bun:",notnull,type:varchar(100),unique:uq_donations_chain_tx_log"`
	TxHash     string    `json:"tx_hash" bun:",notnull,type:varchar(66),unique:uq_donations_chain_tx_log"`
	LogIndex   int64     `json:"log_index" bun:",notnull,unique:uq_donations_chain_tx_log"`
	Timestamp  time.Time `json:"timestamp" bun:",notnull,nullzero,default:current_timestamp"`
}
