package dao

import "time"

// TransactionAuditDao is a data access object that maps directly to the 'transaction_audits' table in PostgreSQL.
// Append-only history of economically meaningful actions; derived data,
// never the source of truth.
type TransactionAuditDao struct {
	tableName  struct{}  `bun:"table:transaction_audits"` // nolint
	ID         int64     `json:"id" bun:",pk,autoincrement"`
	Chain      string    `json:"chain" bun:",notnull,type:varchar(100)"`
	Action     string    `json:"action" bun:",notnull,type:varchar(50)"`
	CampaignID *int64    `json:"campaign_id,omitempty" bun:"campaign_id"`
	Actor      string    `json:"actor" bun:",notnull,type:varchar(66)"`
	Amount     *string   `json:"amount,omitempty" bun:"amount,type:numeric(38,18)"`
	TxHash     string    `json:"tx_hash" bun:",notnull,type:varchar(66)"`
	CreatedAt  time.Time `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
}
