package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ChainStateDao is a data access object that maps directly to the 'chain_state' table in PostgreSQL.
// It stores the last block scanned by the CampaignCreated watcher, keyed by chain id.
type ChainStateDao struct {
	bun.BaseModel `bun:"table:chain_state" yaml:"-"`
	ChainID       int64     `json:"chain_id" yaml:"chain_id" bun:",pk"`
	LastBlock     uint64    `json:"last_block" yaml:"last_block" bun:",notnull"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
