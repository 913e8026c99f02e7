package models

import (
	"time"

	"github.com/uptrace/bun"
)

// JournalEntry : one balanced journal entry. Legs are stored in transaction_legs.
type JournalEntry struct {
	bun.BaseModel `bun:"table:journal_entries"`

	ID             int64             `bun:",pk,autoincrement"`
	Memo           string            `bun:",nullzero"`
	Currency       string            `bun:",notnull"`
	Hash           string            `bun:",nullzero"`
	EntryType      string            `bun:",nullzero"`
	Pending        bool              `bun:",notnull,default:false"`
	Fee            int64             `bun:",notnull,default:0"`
	ErrorMessage   string            `bun:",nullzero"`
	Voided         bool              `bun:",notnull,default:false"`
	VoidReason     string            `bun:",nullzero"`
	OriginalID     int64             `bun:",nullzero"`
	Original       *JournalEntry     `bun:"rel:belongs-to,join:original_id=id"`
	IdempotencyKey string            `bun:",nullzero,unique"`
	ExclusiveKey   string            `bun:",nullzero"`
	CreatedAt      time.Time         `bun:",nullzero,notnull,default:current_timestamp"`
	Legs           []*TransactionLeg `bun:"rel:has-many,join:id=entry_id"`
}

// TransactionLeg : Transaction Leg Model
type TransactionLeg struct {
	ID       int64         `bun:",pk,autoincrement"`
	EntryID  int64         `bun:",notnull"`
	Entry    *JournalEntry `bun:"rel:belongs-to,join:entry_id=id"`
	Account  string        `bun:",notnull"`
	Currency string        `bun:",notnull"`
	Debit    int64         `bun:",notnull,default:0"`
	Credit   int64         `bun:",notnull,default:0"`
}
