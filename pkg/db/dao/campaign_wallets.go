package dao

import "time"

// CampaignWalletDao is a data access object that maps directly to the 'campaign_wallets' table in PostgreSQL.
// The encrypted signing key is only ever decrypted inside the relay's
// submission path.
type CampaignWalletDao struct {
	tableName    struct{}  `bun:"table:campaign_wallets"` // nolint
	CampaignID   int64     `json:"campaign_id" bun:",pk"`
	Chain        string    `json:"chain" bun:",notnull,type:varchar(100)"`
	Address      string    `json:"address" bun:",notnull,unique,type:varchar(66)"`
	EncryptedKey string    `json:"-" bun:"encrypted_key,notnull,type:text"`
	CreatedAt    time.Time `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
}
