package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OnchainAddress : addresses handed out to a user, append only.
type OnchainAddress struct {
	bun.BaseModel `bun:"table:onchain_addresses"`

	ID        int64     `bun:",pk,autoincrement"`
	UserID    int64     `bun:",notnull"`
	User      *User     `bun:"rel:belongs-to,join:user_id=id"`
	Address   string    `bun:",unique,notnull"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
