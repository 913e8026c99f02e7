package ledger

import "context"

// BalanceGuard asks InsertEntry to lock Account and refuse the entry if it
// would leave the account's balance negative.
type BalanceGuard struct {
	Account  Account
	Currency string
}

// Store persists the journal. Every method that writes must be atomic: all
// legs of an entry are stored together or not at all.
type Store interface {
	// InsertEntry stores entry and its legs, setting entry.ID and entry.CreatedAt.
	// A taken IdempotencyKey or live ExclusiveKey fails with ErrDuplicateEntry.
	InsertEntry(ctx context.Context, entry *Entry, guard *BalanceGuard) error
	// VoidEntry flags the entry voided (only if it is not already) and stores
	// its reversal in the same transaction.
	VoidEntry(ctx context.Context, id int64, reason string) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	// FindEntries returns matching entries ordered by created_at, id.
	FindEntries(ctx context.Context, filter Filter) ([]Entry, error)
	// ClearPending flips pending to false on entries matching hash and type that
	// are still pending and returns the ids this call flipped.
	ClearPending(ctx context.Context, hash, entryType, errorMessage string) ([]int64, error)
	// ClearPendingEntry is ClearPending for a single entry. It reports whether
	// this call flipped it.
	ClearPendingEntry(ctx context.Context, id int64, errorMessage string) (bool, error)
	Balance(ctx context.Context, account Account, currency string) (int64, error)
}
