package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store kept in process memory. A single mutex makes every
// write atomic.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[int64]*Entry
	keys      map[string]int64
	exclusive map[string]int64
	nextID    int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   map[int64]*Entry{},
		keys:      map[string]int64{},
		exclusive: map[string]int64{},
		now:       time.Now,
	}
}

func (m *MemoryStore) InsertEntry(ctx context.Context, entry *Entry, guard *BalanceGuard) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if guard != nil {
		balance := m.balance(guard.Account, guard.Currency) + entry.AccountAmount(guard.Account)
		if balance < 0 {
			return fmt.Errorf("%w: account %s would have %d", ErrInsufficientBalance, guard.Account, balance)
		}
	}
	return m.insert(entry)
}

func (m *MemoryStore) insert(entry *Entry) error {
	if entry.IdempotencyKey != "" {
		if _, ok := m.keys[entry.IdempotencyKey]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.IdempotencyKey)
		}
	}
	if entry.ExclusiveKey != "" && !entry.IsReversal() {
		if _, ok := m.exclusive[entry.ExclusiveKey]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.ExclusiveKey)
		}
	}
	m.nextID++
	entry.ID = m.nextID
	entry.CreatedAt = m.now()
	m.entries[entry.ID] = copyEntry(entry)
	if entry.IdempotencyKey != "" {
		m.keys[entry.IdempotencyKey] = entry.ID
	}
	if entry.ExclusiveKey != "" && !entry.IsReversal() {
		m.exclusive[entry.ExclusiveKey] = entry.ID
	}
	return nil
}

func (m *MemoryStore) VoidEntry(ctx context.Context, id int64, reason string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if original.Voided {
		return nil, fmt.Errorf("%w: id %d", ErrAlreadyVoided, id)
	}
	reversal := original.Reversal(reason)
	if err := m.insert(reversal); err != nil {
		return nil, err
	}
	original.Voided = true
	original.VoidReason = reason
	if original.ExclusiveKey != "" {
		delete(m.exclusive, original.ExclusiveKey)
	}
	return reversal, nil
}

func (m *MemoryStore) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return copyEntry(entry), nil
}

func (m *MemoryStore) FindEntries(ctx context.Context, filter Filter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Entry{}
	for _, entry := range m.entries {
		if matches(entry, filter) {
			result = append(result, *copyEntry(entry))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) ClearPending(ctx context.Context, hash, entryType, errorMessage string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleared := []int64{}
	for id, entry := range m.entries {
		if entry.Meta.Hash != hash || !entry.Meta.Pending {
			continue
		}
		if entryType != "" && entry.Meta.Type != entryType {
			continue
		}
		entry.Meta.Pending = false
		if errorMessage != "" {
			entry.Meta.Error = errorMessage
		}
		cleared = append(cleared, id)
	}
	sort.Slice(cleared, func(i, j int) bool { return cleared[i] < cleared[j] })
	return cleared, nil
}

func (m *MemoryStore) ClearPendingEntry(ctx context.Context, id int64, errorMessage string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return false, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if !entry.Meta.Pending {
		return false, nil
	}
	entry.Meta.Pending = false
	if errorMessage != "" {
		entry.Meta.Error = errorMessage
	}
	return true, nil
}

func (m *MemoryStore) Balance(ctx context.Context, account Account, currency string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balance(account, currency), nil
}

func (m *MemoryStore) balance(account Account, currency string) int64 {
	var balance int64
	for _, entry := range m.entries {
		if entry.Voided || entry.IsReversal() {
			continue
		}
		for _, leg := range entry.Legs {
			if leg.Account == account && leg.Currency == currency {
				balance += leg.Credit - leg.Debit
			}
		}
	}
	return balance
}

func matches(entry *Entry, filter Filter) bool {
	if filter.Hash != "" && entry.Meta.Hash != filter.Hash {
		return false
	}
	if filter.Type != "" && entry.Meta.Type != filter.Type {
		return false
	}
	if filter.Pending != nil && entry.Meta.Pending != *filter.Pending {
		return false
	}
	if filter.Account == "" && filter.Currency == "" {
		return true
	}
	for _, leg := range entry.Legs {
		if filter.Account != "" && leg.Account != filter.Account {
			continue
		}
		if filter.Currency != "" && leg.Currency != filter.Currency {
			continue
		}
		return true
	}
	return false
}

func copyEntry(entry *Entry) *Entry {
	c := *entry
	c.Legs = append([]Leg(nil), entry.Legs...)
	return &c
}

var _ Store = (*MemoryStore)(nil)
