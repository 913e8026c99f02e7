package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getAlby/lnledger/db/models"
	"github.com/getAlby/lnledger/ledger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// JournalStore keeps the ledger in journal_entries and transaction_legs.
type JournalStore struct {
	db *bun.DB
}

func NewJournalStore(db *bun.DB) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) InsertEntry(ctx context.Context, entry *ledger.Entry, guard *ledger.BalanceGuard) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if guard != nil {
			// held until the transaction ends, serializing debits per account
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", guard.Account.String()); err != nil {
				return err
			}
			balance, err := accountBalance(ctx, tx, guard.Account, guard.Currency)
			if err != nil {
				return err
			}
			if after := balance + entry.AccountAmount(guard.Account); after < 0 {
				return fmt.Errorf("%w: account %s would have %d", ledger.ErrInsufficientBalance, guard.Account, after)
			}
		}
		return insertEntry(ctx, tx, entry)
	})
}

func insertEntry(ctx context.Context, tx bun.Tx, entry *ledger.Entry) error {
	row := &models.JournalEntry{
		Memo:           entry.Memo,
		Currency:       entry.Currency,
		Hash:           entry.Meta.Hash,
		EntryType:      entry.Meta.Type,
		Pending:        entry.Meta.Pending,
		Fee:            entry.Meta.Fee,
		ErrorMessage:   entry.Meta.Error,
		OriginalID:     entry.OriginalID,
		IdempotencyKey: entry.IdempotencyKey,
	}
	if !entry.IsReversal() {
		row.ExclusiveKey = entry.ExclusiveKey
	}
	_, err := tx.NewInsert().Model(row).Returning("id, created_at").Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateEntry, pgErr.Field('n'))
		}
		return err
	}

	legs := make([]*models.TransactionLeg, 0, len(entry.Legs))
	for _, leg := range entry.Legs {
		legs = append(legs, &models.TransactionLeg{
			EntryID:  row.ID,
			Account:  leg.Account.String(),
			Currency: leg.Currency,
			Debit:    leg.Debit,
			Credit:   leg.Credit,
		})
	}
	if _, err := tx.NewInsert().Model(&legs).Exec(ctx); err != nil {
		return err
	}
	entry.ID = row.ID
	entry.CreatedAt = row.CreatedAt
	return nil
}

func (s *JournalStore) VoidEntry(ctx context.Context, id int64, reason string) (*ledger.Entry, error) {
	var reversal *ledger.Entry
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// a concurrent void blocks on the row lock and then matches nothing
		res, err := tx.NewUpdate().
			Model((*models.JournalEntry)(nil)).
			Set("voided = TRUE").
			Set("void_reason = ?", reason).
			Where("id = ?", id).
			Where("NOT voided").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			exists, err := tx.NewSelect().Model((*models.JournalEntry)(nil)).Where("id = ?", id).Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
			}
			return fmt.Errorf("%w: id %d", ledger.ErrAlreadyVoided, id)
		}

		original, err := getEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		reversal = original.Reversal(reason)
		return insertEntry(ctx, tx, reversal)
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

func (s *JournalStore) GetEntry(ctx context.Context, id int64) (*ledger.Entry, error) {
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db bun.IDB, id int64) (*ledger.Entry, error) {
	row := new(models.JournalEntry)
	err := db.NewSelect().
		Model(row).
		Relation("Legs", orderLegs).
		Where("journal_entry.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return toEntry(row), nil
}

func (s *JournalStore) FindEntries(ctx context.Context, filter ledger.Filter) ([]ledger.Entry, error) {
	rows := []models.JournalEntry{}
	query := s.db.NewSelect().
		Model(&rows).
		Relation("Legs", orderLegs).
		Order("journal_entry.created_at ASC", "journal_entry.id ASC")
	if filter.Hash != "" {
		query = query.Where("journal_entry.hash = ?", filter.Hash)
	}
	if filter.Type != "" {
		query = query.Where("journal_entry.entry_type = ?", filter.Type)
	}
	if filter.Pending != nil {
		query = query.Where("journal_entry.pending = ?", *filter.Pending)
	}
	if filter.Account != "" || filter.Currency != "" {
		legs := s.db.NewSelect().
			Model((*models.TransactionLeg)(nil)).
			ColumnExpr("1").
			Where("transaction_leg.entry_id = journal_entry.id")
		if filter.Account != "" {
			legs = legs.Where("transaction_leg.account = ?", filter.Account.String())
		}
		if filter.Currency != "" {
			legs = legs.Where("transaction_leg.currency = ?", filter.Currency)
		}
		query = query.Where("EXISTS (?)", legs)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	entries := make([]ledger.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *toEntry(&rows[i]))
	}
	return entries, nil
}

func (s *JournalStore) ClearPending(ctx context.Context, hash, entryType, errorMessage string) ([]int64, error) {
	query := s.db.NewUpdate().
		Model((*models.JournalEntry)(nil)).
		Set("pending = FALSE").
		Where("hash = ?", hash).
		Where("pending")
	if entryType != "" {
		query = query.Where("entry_type = ?", entryType)
	}
	if errorMessage != "" {
		query = query.Set("error_message = ?", errorMessage)
	}
	ids := []int64{}
	if _, err := query.Returning("id").Exec(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *JournalStore) ClearPendingEntry(ctx context.Context, id int64, errorMessage string) (bool, error) {
	query := s.db.NewUpdate().
		Model((*models.JournalEntry)(nil)).
		Set("pending = FALSE").
		Where("id = ?", id).
		Where("pending")
	if errorMessage != "" {
		query = query.Set("error_message = ?", errorMessage)
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	exists, err := s.db.NewSelect().Model((*models.JournalEntry)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
	}
	return false, nil
}

func (s *JournalStore) Balance(ctx context.Context, account ledger.Account, currency string) (int64, error) {
	return accountBalance(ctx, s.db, account, currency)
}

// accountBalance sums legs of entries that are neither voided nor reversals.
func accountBalance(ctx context.Context, db bun.IDB, account ledger.Account, currency string) (int64, error) {
	var balance int64
	err := db.NewSelect().
		TableExpr("transaction_legs AS l").
		Join("JOIN journal_entries AS e ON e.id = l.entry_id").
		ColumnExpr("COALESCE(SUM(l.credit - l.debit), 0)").
		Where("l.account = ?", account.String()).
		Where("l.currency = ?", currency).
		Where("NOT e.voided").
		Where("e.original_id IS NULL").
		Scan(ctx, &balance)
	return balance, err
}

func orderLegs(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("id ASC")
}

func toEntry(row *models.JournalEntry) *ledger.Entry {
	entry := &ledger.Entry{
		ID:       row.ID,
		Memo:     row.Memo,
		Currency: row.Currency,
		Meta: ledger.Meta{
			Hash:    row.Hash,
			Type:    row.EntryType,
			Pending: row.Pending,
			Fee:     row.Fee,
			Error:   row.ErrorMessage,
		},
		IdempotencyKey: row.IdempotencyKey,
		ExclusiveKey:   row.ExclusiveKey,
		Voided:         row.Voided,
		VoidReason:     row.VoidReason,
		OriginalID:     row.OriginalID,
		CreatedAt:      row.CreatedAt,
	}
	for _, leg := range row.Legs {
		entry.Legs = append(entry.Legs, ledger.Leg{
			Account:  ledger.Account(leg.Account),
			Currency: leg.Currency,
			Debit:    leg.Debit,
			Credit:   leg.Credit,
		})
	}
	return entry
}

var _ ledger.Store = (*JournalStore)(nil)
