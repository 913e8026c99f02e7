package ledger

import (
	"context"
	"fmt"
)

// Book is the double-entry journal. It validates entries before they reach
// the store and is the only writer of the journal.
type Book struct {
	store Store
}

func NewBook(store Store) *Book {
	return &Book{store: store}
}

// Validate checks that every leg moves a positive amount in one direction and
// that debits equal credits per currency.
func Validate(entry *Entry) error {
	if len(entry.Legs) == 0 {
		return ErrEmptyEntry
	}
	sums := map[string]int64{}
	for i := range entry.Legs {
		leg := &entry.Legs[i]
		if leg.Currency == "" {
			leg.Currency = entry.Currency
		}
		if leg.Debit < 0 || leg.Credit < 0 || (leg.Debit == 0) == (leg.Credit == 0) {
			return fmt.Errorf("%w: account %s debit %d credit %d", ErrInvalidLeg, leg.Account, leg.Debit, leg.Credit)
		}
		sums[leg.Currency] += leg.Debit - leg.Credit
	}
	for currency, sum := range sums {
		if sum != 0 {
			return fmt.Errorf("%w: %s off by %d", ErrImbalancedEntry, currency, sum)
		}
	}
	return nil
}

func (b *Book) Commit(ctx context.Context, entry *Entry) (int64, error) {
	if err := Validate(entry); err != nil {
		return 0, err
	}
	if err := b.store.InsertEntry(ctx, entry, nil); err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// CommitWithBalanceCheck commits entry only if account still has a non-negative
// balance afterwards. The check and the insert happen under one lock.
func (b *Book) CommitWithBalanceCheck(ctx context.Context, entry *Entry, account Account) (int64, error) {
	if err := Validate(entry); err != nil {
		return 0, err
	}
	guard := &BalanceGuard{Account: account, Currency: entry.Currency}
	if err := b.store.InsertEntry(ctx, entry, guard); err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// Void reverses a committed entry. Voiding twice fails with ErrAlreadyVoided
// and reversals themselves cannot be voided.
func (b *Book) Void(ctx context.Context, id int64, reason string) (*Entry, error) {
	entry, err := b.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.IsReversal() {
		return nil, fmt.Errorf("%w: id %d reverses %d", ErrReversalEntry, id, entry.OriginalID)
	}
	return b.store.VoidEntry(ctx, id, reason)
}

func (b *Book) ClearPending(ctx context.Context, hash, entryType, errorMessage string) ([]int64, error) {
	return b.store.ClearPending(ctx, hash, entryType, errorMessage)
}

func (b *Book) ClearPendingEntry(ctx context.Context, id int64, errorMessage string) (bool, error) {
	return b.store.ClearPendingEntry(ctx, id, errorMessage)
}

func (b *Book) Balance(ctx context.Context, account Account, currency string) (int64, error) {
	return b.store.Balance(ctx, account, currency)
}

// History returns every entry touching account in currency, oldest first.
func (b *Book) History(ctx context.Context, account Account, currency string) ([]Entry, error) {
	return b.store.FindEntries(ctx, Filter{Account: account, Currency: currency})
}

func (b *Book) FindEntries(ctx context.Context, filter Filter) ([]Entry, error) {
	return b.store.FindEntries(ctx, filter)
}

func (b *Book) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	return b.store.GetEntry(ctx, id)
}

func (b *Book) Exists(ctx context.Context, filter Filter) (bool, error) {
	entries, err := b.store.FindEntries(ctx, filter)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
