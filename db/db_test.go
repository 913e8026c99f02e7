package db

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/getAlby/lnledger/db/models"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"
)

const (
	alice   ledger.Account = "Liabilities:Customer:1"
	reserve ledger.Account = "Assets:Reserve:Lightning"
)

type StoreTestSuite struct {
	suite.Suite
	db      *bun.DB
	book    *ledger.Book
	records *RecordStore
}

func TestStoreTestSuite(t *testing.T) {
	if os.Getenv("DATABASE_URI") == "" {
		t.Skip("DATABASE_URI not set")
	}
	suite.Run(t, new(StoreTestSuite))
}

func (suite *StoreTestSuite) SetupSuite() {
	dbConn, err := Open(&service.Config{
		DatabaseUri:          os.Getenv("DATABASE_URI"),
		DatabaseMaxConns:     10,
		DatabaseMaxIdleConns: 5,
	})
	suite.Require().NoError(err)
	_, err = Migrate(context.Background(), dbConn)
	suite.Require().NoError(err)
	suite.db = dbConn
	suite.book = ledger.NewBook(NewJournalStore(dbConn))
	suite.records = NewRecordStore(dbConn)
}

func (suite *StoreTestSuite) SetupTest() {
	_, err := suite.db.ExecContext(context.Background(),
		"TRUNCATE transaction_legs, journal_entries, invoice_users, onchain_addresses, users RESTART IDENTITY CASCADE")
	suite.Require().NoError(err)
}

func (suite *StoreTestSuite) TearDownSuite() {
	suite.db.Close()
}

func (suite *StoreTestSuite) fund(amount int64) {
	entry := ledger.NewEntry("deposit", "BTC").
		Credit(alice, amount).
		Debit(reserve, amount).
		WithMeta(ledger.Meta{Hash: "deposit", Type: "invoice"}).
		Entry()
	_, err := suite.book.Commit(context.Background(), entry)
	suite.Require().NoError(err)
}

func (suite *StoreTestSuite) payment(amount int64, hash string) *ledger.Entry {
	return ledger.NewEntry("Payment sent", "BTC").
		Debit(alice, amount).
		Credit(reserve, amount).
		WithMeta(ledger.Meta{Hash: hash, Type: "payment", Pending: true, Fee: 1}).
		Entry()
}

func (suite *StoreTestSuite) TestCommitAndBalance() {
	ctx := context.Background()
	suite.fund(1000)

	id, err := suite.book.CommitWithBalanceCheck(ctx, suite.payment(400, "pay-1"), alice)
	suite.Require().NoError(err)

	balance, err := suite.book.Balance(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Equal(int64(600), balance)

	entry, err := suite.book.GetEntry(ctx, id)
	suite.Require().NoError(err)
	suite.Equal("pay-1", entry.Meta.Hash)
	suite.True(entry.Meta.Pending)
	suite.Equal(int64(1), entry.Meta.Fee)
	suite.Len(entry.Legs, 2)
	suite.False(entry.CreatedAt.IsZero())

	_, err = suite.book.GetEntry(ctx, id+100)
	suite.ErrorIs(err, ledger.ErrNotFound)
}

func (suite *StoreTestSuite) TestBalanceCheckRejectsOverdraft() {
	ctx := context.Background()
	suite.fund(100)

	_, err := suite.book.CommitWithBalanceCheck(ctx, suite.payment(101, "too-much"), alice)
	suite.ErrorIs(err, ledger.ErrInsufficientBalance)

	exists, err := suite.book.Exists(ctx, ledger.Filter{Hash: "too-much"})
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *StoreTestSuite) TestConcurrentDebitsNeverOverdraw() {
	ctx := context.Background()
	suite.fund(500)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := suite.book.CommitWithBalanceCheck(ctx, suite.payment(100, "concurrent"), alice)
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	suite.Equal(5, committed)
	balance, err := suite.book.Balance(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Zero(balance)
}

func (suite *StoreTestSuite) TestIdempotencyKey() {
	ctx := context.Background()
	entry := func() *ledger.Entry {
		return ledger.NewEntry("invoice", "BTC").
			Credit(alice, 50).
			Debit(reserve, 50).
			WithMeta(ledger.Meta{Hash: "inv", Type: "invoice"}).
			WithIdempotencyKey("invoice:inv").
			Entry()
	}
	_, err := suite.book.Commit(ctx, entry())
	suite.Require().NoError(err)
	_, err = suite.book.Commit(ctx, entry())
	suite.ErrorIs(err, ledger.ErrDuplicateEntry)

	balance, err := suite.book.Balance(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Equal(int64(50), balance)
}

func (suite *StoreTestSuite) TestExclusiveKey() {
	ctx := context.Background()
	suite.fund(1000)
	exclusive := func() *ledger.Entry {
		entry := suite.payment(100, "shared")
		entry.ExclusiveKey = "payment:shared"
		return entry
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ids := []int64{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := suite.book.CommitWithBalanceCheck(ctx, exclusive(), alice)
			if err != nil {
				suite.ErrorIs(err, ledger.ErrDuplicateEntry)
				return
			}
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}()
	}
	wg.Wait()
	suite.Require().Len(ids, 1)

	reversal, err := suite.book.Void(ctx, ids[0], "no route")
	suite.Require().NoError(err)
	_, err = suite.book.Void(ctx, reversal.ID, "again")
	suite.ErrorIs(err, ledger.ErrReversalEntry)

	id, err := suite.book.CommitWithBalanceCheck(ctx, exclusive(), alice)
	suite.Require().NoError(err)
	entry, err := suite.book.GetEntry(ctx, id)
	suite.Require().NoError(err)
	suite.Equal("payment:shared", entry.ExclusiveKey)

	cleared, err := suite.book.ClearPendingEntry(ctx, id, "")
	suite.Require().NoError(err)
	suite.True(cleared)
	cleared, err = suite.book.ClearPendingEntry(ctx, id, "")
	suite.Require().NoError(err)
	suite.False(cleared)
	_, err = suite.book.ClearPendingEntry(ctx, id+100, "")
	suite.ErrorIs(err, ledger.ErrNotFound)

	balance, err := suite.book.Balance(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Equal(int64(900), balance)
}

func (suite *StoreTestSuite) TestClearPendingAndVoid() {
	ctx := context.Background()
	suite.fund(1000)
	id, err := suite.book.CommitWithBalanceCheck(ctx, suite.payment(300, "pay-2"), alice)
	suite.Require().NoError(err)

	cleared, err := suite.book.ClearPending(ctx, "pay-2", "payment", "no route")
	suite.Require().NoError(err)
	suite.Equal([]int64{id}, cleared)
	cleared, err = suite.book.ClearPending(ctx, "pay-2", "payment", "")
	suite.Require().NoError(err)
	suite.Empty(cleared)

	reversal, err := suite.book.Void(ctx, id, "no route")
	suite.Require().NoError(err)
	suite.Equal(id, reversal.OriginalID)
	_, err = suite.book.Void(ctx, id, "no route")
	suite.ErrorIs(err, ledger.ErrAlreadyVoided)
	_, err = suite.book.Void(ctx, id+100, "missing")
	suite.ErrorIs(err, ledger.ErrNotFound)

	balance, err := suite.book.Balance(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Equal(int64(1000), balance)

	entry, err := suite.book.GetEntry(ctx, id)
	suite.Require().NoError(err)
	suite.True(entry.Voided)
	suite.Equal("no route", entry.Meta.Error)

	history, err := suite.book.History(ctx, alice, "BTC")
	suite.Require().NoError(err)
	suite.Len(history, 3)
}

func (suite *StoreTestSuite) TestRecords() {
	ctx := context.Background()
	user := &models.User{Login: "alice", Password: "hashed"}
	suite.Require().NoError(suite.records.CreateUser(ctx, user))
	suite.NotZero(user.ID)

	found, err := suite.records.FindUserByLogin(ctx, "alice")
	suite.Require().NoError(err)
	suite.Equal(user.ID, found.ID)
	_, err = suite.records.FindUserByLogin(ctx, "bob")
	suite.ErrorIs(err, sql.ErrNoRows)

	invoice := &models.InvoiceUser{Hash: "hash-1", UserID: user.ID, Pending: true, Amount: 10}
	suite.Require().NoError(suite.records.CreateInvoice(ctx, invoice))
	pending, err := suite.records.PendingInvoices(ctx, user.ID)
	suite.Require().NoError(err)
	suite.Len(pending, 1)

	claimed, err := suite.records.ClaimInvoice(ctx, user.ID, "hash-1")
	suite.Require().NoError(err)
	suite.True(claimed)
	claimed, err = suite.records.ClaimInvoice(ctx, user.ID, "hash-1")
	suite.Require().NoError(err)
	suite.False(claimed)

	suite.Require().NoError(suite.records.ReleaseInvoice(ctx, user.ID, "hash-1"))
	claimed, err = suite.records.ClaimInvoice(ctx, user.ID, "hash-1")
	suite.Require().NoError(err)
	suite.True(claimed)

	suite.Require().NoError(suite.records.AddOnchainAddress(ctx, user.ID, "bcrt1qaddress"))
	suite.Require().NoError(suite.records.AddOnchainAddress(ctx, user.ID, "bcrt1qaddress"))
	addresses, err := suite.records.OnchainAddresses(ctx, user.ID)
	suite.Require().NoError(err)
	suite.Equal([]string{"bcrt1qaddress"}, addresses)
	owner, err := suite.records.FindUserByAddress(ctx, "bcrt1qaddress")
	suite.Require().NoError(err)
	suite.Equal(user.ID, owner)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(&service.Config{DatabaseUri: "sqlite://lnledger.db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only (postgres|postgresql|unix)")
}
