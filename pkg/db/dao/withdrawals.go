package dao

import "time"

// WithdrawalDao is a data access object that maps directly to the 'withdrawals' table in PostgreSQL.
// The primary key is the on-chain request id scoped to the main chain.
type WithdrawalDao struct {
	tableName       struct{}   `bun:"table:withdrawals"` // nolint
	RequestID       int64      `json:"request_id" bun:",pk"`
	Requester       string     `json:"requester" bun:",notnull,type:varchar(66)"`
	Amount          string     `json:"amount" bun:",notnull,type:numeric(38,18)"`
	Token           string     `json:"token" bun:",notnull,type:varchar(66)"`
	TargetChain     string     `json:"target_chain" bun:",notnull,type:varchar(100)"`
	Status          string     `json:"status" bun:",notnull,type:varchar(20)"`
	RequestTxHash   string     `json:"request_tx_hash" bun:",notnull,type:varchar(66)"`
	ProcessedTxHash *string    `json:"processed_tx_hash,omitempty" bun:"processed_tx_hash,type:varchar(66)"`
	RequestedAt     time.Time  `json:"requested_at" bun:",notnull,nullzero,default:current_timestamp"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty" bun:"processed_at"`
}
