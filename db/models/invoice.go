package models

import (
	"time"

	"github.com/uptrace/bun"
)

// InvoiceUser links a node invoice to the user it was created for. Pending
// flips to false exactly once, when the invoice is credited.
type InvoiceUser struct {
	bun.BaseModel `bun:"table:invoice_users"`

	Hash           string    `json:"hash" bun:",pk"`
	UserID         int64     `json:"user_id" bun:",notnull"`
	User           *User     `json:"-" bun:"rel:belongs-to,join:user_id=id"`
	Pending        bool      `json:"pending" bun:",notnull,default:true"`
	Amount         int64     `json:"amount" validate:"gt=0"`
	Memo           string    `json:"memo" bun:",nullzero"`
	PaymentRequest string    `json:"payment_request" bun:",nullzero"`
	CreatedAt      time.Time `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
}
