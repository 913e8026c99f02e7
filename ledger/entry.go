package ledger

import (
	"strings"
	"time"
)

// Account is a colon separated ledger path, e.g. "Liabilities:Customer:42".
type Account string

func NewAccount(parts ...string) Account {
	return Account(strings.Join(parts, ":"))
}

func (a Account) Parts() []string {
	return strings.Split(string(a), ":")
}

func (a Account) String() string {
	return string(a)
}

// Leg moves an amount on one account. Exactly one of Debit and Credit is set.
type Leg struct {
	Account  Account
	Currency string
	Debit    int64
	Credit   int64
}

// Meta is the metadata every leg of an entry shares.
type Meta struct {
	Hash    string
	Type    string
	Pending bool
	Fee     int64
	Error   string
}

// Entry is a balanced group of legs. Once committed it only changes through Void
// and ClearPending.
type Entry struct {
	ID             int64
	Memo           string
	Currency       string
	Meta           Meta
	IdempotencyKey string
	// ExclusiveKey is unique among entries that are neither voided nor
	// reversals. Voiding the entry frees it.
	ExclusiveKey string
	Voided       bool
	VoidReason   string
	OriginalID   int64
	CreatedAt    time.Time
	Legs         []Leg
}

// IsReversal reports whether the entry was committed by Void.
func (e *Entry) IsReversal() bool {
	return e.OriginalID != 0
}

// AccountAmount is the signed credit-minus-debit amount the entry moves on account.
func (e *Entry) AccountAmount(account Account) int64 {
	var amount int64
	for _, leg := range e.Legs {
		if leg.Account == account {
			amount += leg.Credit - leg.Debit
		}
	}
	return amount
}

// Reversal builds the equal and opposite entry for e.
func (e *Entry) Reversal(reason string) *Entry {
	legs := make([]Leg, len(e.Legs))
	for i, leg := range e.Legs {
		legs[i] = Leg{
			Account:  leg.Account,
			Currency: leg.Currency,
			Debit:    leg.Credit,
			Credit:   leg.Debit,
		}
	}
	meta := e.Meta
	meta.Pending = false
	return &Entry{
		Memo:       reason,
		Currency:   e.Currency,
		Meta:       meta,
		OriginalID: e.ID,
		Legs:       legs,
	}
}

// EntryBuilder assembles an entry leg by leg:
//
//	ledger.NewEntry("Payment sent", "BTC").
//		Debit(user, 1010).
//		Credit(reserve, 1010).
//		WithMeta(ledger.Meta{Hash: hash, Type: "payment", Pending: true})
type EntryBuilder struct {
	entry *Entry
}

func NewEntry(memo, currency string) *EntryBuilder {
	return &EntryBuilder{entry: &Entry{Memo: memo, Currency: currency}}
}

func (b *EntryBuilder) Debit(account Account, amount int64) *EntryBuilder {
	b.entry.Legs = append(b.entry.Legs, Leg{Account: account, Currency: b.entry.Currency, Debit: amount})
	return b
}

func (b *EntryBuilder) Credit(account Account, amount int64) *EntryBuilder {
	b.entry.Legs = append(b.entry.Legs, Leg{Account: account, Currency: b.entry.Currency, Credit: amount})
	return b
}

func (b *EntryBuilder) WithMeta(meta Meta) *EntryBuilder {
	b.entry.Meta = meta
	return b
}

func (b *EntryBuilder) WithIdempotencyKey(key string) *EntryBuilder {
	b.entry.IdempotencyKey = key
	return b
}

func (b *EntryBuilder) WithExclusiveKey(key string) *EntryBuilder {
	b.entry.ExclusiveKey = key
	return b
}

func (b *EntryBuilder) Entry() *Entry {
	return b.entry
}

// Filter selects entries. Zero values are ignored; Pending is only applied when set.
type Filter struct {
	Account  Account
	Currency string
	Hash     string
	Type     string
	Pending  *bool
}

func PendingOnly() *bool {
	pending := true
	return &pending
}
