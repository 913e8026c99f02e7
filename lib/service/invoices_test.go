package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddInvoice(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 1000, "integration test")
	require.NoError(t, err)
	assert.True(t, invoice.Pending)
	assert.Equal(t, userID, invoice.UserID)

	decoded, err := env.svc.DecodePaymentRequest(invoice.PaymentRequest)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), int64(*decoded.MilliSat)/1000)

	_, err = env.svc.AddInvoice(ctx, userID, 0, "nothing")
	var invalid *InvalidInvoiceError
	assert.ErrorAs(t, err, &invalid)

	env.mlnd.SetOffline(true)
	_, err = env.svc.AddInvoice(ctx, userID, 10, "offline")
	var upstream *UpstreamUnavailableError
	assert.ErrorAs(t, err, &upstream)
}

func TestUnpaidInvoiceIsNotCredited(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 1000, "unpaid")
	require.NoError(t, err)
	require.NoError(t, env.svc.UpdatePendingInvoices(ctx, userID))
	assert.Equal(t, int64(0), env.balance(t, userID))

	record, err := env.records.FindInvoice(ctx, invoice.Hash)
	require.NoError(t, err)
	assert.True(t, record.Pending)
}

func TestConcurrentInvoiceReconciliationCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 1000, "paid once")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice.Hash, 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var ok bool
			var err error
			if i%2 == 0 {
				ok, err = env.svc.UpdatePendingInvoice(ctx, userID, invoice.Hash)
			} else {
				// the push path funnels into the same claim
				err = env.svc.OnInvoiceUpdate(ctx, &lnd.InvoiceStatus{ID: invoice.Hash, Confirmed: true, Received: 1000})
			}
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, credited, 1)

	entries, err := env.svc.Book.FindEntries(ctx, ledger.Filter{Hash: invoice.Hash, Type: common.EntryTypeInvoice})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1000), env.balance(t, userID))
	assert.Equal(t, []string{common.NotificationInvoicePaid}, env.notifier.kinds())
}

func TestInvoiceCreditsAmountReceived(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 1000, "overpaid")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice.Hash, 1200)
	require.NoError(t, env.svc.UpdatePendingInvoices(ctx, userID))
	assert.Equal(t, int64(1200), env.balance(t, userID))
}

func TestCreditFailureReleasesClaim(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 1000, "retry me")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice.Hash, 1000)

	// an existing entry under the same key makes the credit a duplicate: handled
	dup := ledger.NewEntry("", common.DefaultCurrency).
		Credit(UserAccount(userID), 1000).
		Debit(env.svc.reserveAccount(), 1000).
		WithMeta(ledger.Meta{Hash: invoice.Hash, Type: common.EntryTypeInvoice}).
		WithIdempotencyKey(common.EntryTypeInvoice + ":" + invoice.Hash).
		Entry()
	_, err = env.svc.Book.Commit(ctx, dup)
	require.NoError(t, err)

	credited, err := env.svc.UpdatePendingInvoice(ctx, userID, invoice.Hash)
	require.NoError(t, err)
	assert.False(t, credited)
	assert.Equal(t, int64(1000), env.balance(t, userID))

	// a record lookup failure after the claim puts the invoice back to pending
	invoice2, err := env.svc.AddInvoice(ctx, userID, 500, "flaky records")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice2.Hash, 0)
	env.records.FindInvoiceErr = errors.New("connection reset")
	_, err = env.svc.UpdatePendingInvoice(ctx, userID, invoice2.Hash)
	var recon *InternalReconciliationError
	require.ErrorAs(t, err, &recon)
	assert.Equal(t, invoice2.Hash, recon.Hash)

	env.records.FindInvoiceErr = nil
	pending, err := env.records.PendingInvoices(ctx, userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// next pass credits it, falling back to the record amount
	credited, err = env.svc.UpdatePendingInvoice(ctx, userID, invoice2.Hash)
	require.NoError(t, err)
	assert.True(t, credited)
	assert.Equal(t, int64(1500), env.balance(t, userID))
}

func TestOnInvoiceUpdateIgnoresUnknownAndOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assert.NoError(t, env.svc.OnInvoiceUpdate(ctx, &lnd.InvoiceStatus{ID: "unknown", Confirmed: true}))
	assert.NoError(t, env.svc.OnInvoiceUpdate(ctx, &lnd.InvoiceStatus{ID: "open"}))
	assert.Empty(t, env.notifier.kinds())
}

func TestNormalizePaymentRequest(t *testing.T) {
	assert.Equal(t, "lnbcrt1abc", NormalizePaymentRequest("  LIGHTNING:LNBCRT1ABC "))
	assert.Equal(t, "lnbc1", NormalizePaymentRequest("lnbc1"))
}

func TestInvoicePaid(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t)
	bob := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, alice, 300, "check me")
	require.NoError(t, err)

	paid, err := env.svc.InvoicePaid(ctx, alice, invoice.Hash)
	require.NoError(t, err)
	assert.False(t, paid)

	env.mlnd.SettleInvoice(invoice.Hash, 300)
	paid, err = env.svc.InvoicePaid(ctx, alice, invoice.Hash)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, int64(300), env.balance(t, alice))

	_, err = env.svc.InvoicePaid(ctx, bob, invoice.Hash)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRepublishInvoiceNotifications(t *testing.T) {
	env := newTestEnv(t)
	userID := env.createUser(t)
	ctx := context.Background()

	invoice, err := env.svc.AddInvoice(ctx, userID, 400, "republish")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice.Hash, 400)
	credited, err := env.svc.UpdatePendingInvoice(ctx, userID, invoice.Hash)
	require.NoError(t, err)
	require.True(t, credited)
	require.Equal(t, []string{common.NotificationInvoicePaid}, env.notifier.kinds())

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	found, failed, err := env.svc.RepublishInvoiceNotifications(ctx, start, end, true)
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Equal(t, 0, failed)
	assert.Len(t, env.notifier.kinds(), 1)

	found, _, err = env.svc.RepublishInvoiceNotifications(ctx, start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	assert.Equal(t, []string{common.NotificationInvoicePaid, common.NotificationInvoicePaid}, env.notifier.kinds())

	found, _, err = env.svc.RepublishInvoiceNotifications(ctx, end, end.Add(time.Hour), false)
	require.NoError(t, err)
	assert.Zero(t, found)
}
