package dao

import "time"

// IndexProgressDao is a data access object that maps directly to the 'index_progress' table in PostgreSQL.
// last_indexed_block is monotonically non-decreasing per chain.
type IndexProgressDao struct {
	tableName        struct{}  `bun:"table:index_progress"` // nolint
	Chain            string    `json:"chain" bun:",pk,type:varchar(100)"`
	LastIndexedBlock int64     `json:"last_indexed_block" bun:",notnull"`
	UpdatedAt        time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
