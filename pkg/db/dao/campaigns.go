package dao

import "time"

// CampaignDao is a data access object that maps directly to the 'campaigns' table in PostgreSQL.
// The primary key is the on-chain campaign id scoped to the main chain.
type CampaignDao struct {
	tableName    struct{}  `bun:"table:campaigns"` // nolint
	ID           int64     `json:"id" bun:",pk"`
	Name         string    `json:"name" bun:",notnull,type:varchar(255)"`
	Description  string    `json:"description" bun:",type:text"`
	Target       string    `json:"target" bun:",notnull,type:numeric(38,18)"`
	SocialLink   string    `json:"social_link" bun:",type:text"`
	Image        string    `json:"image" bun:",type:text"`
	Owner        string    `json:"owner" bun:",notnull,type:varchar(66)"`
	Ended        bool      `json:"ended" bun:",notnull,default:false"`
	AmountRaised string    `json:"amount_raised" bun:",notnull,type:numeric(38,18),default:0"`
	TxHash       string    `json:"tx_hash" bun:",notnull,type:varchar(66)"`
	CreatedAt    time.Time `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
	UpdatedAt    time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
