package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/db/dbmock"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd/lndmock"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

type sentNotification struct {
	UserID  int64
	Kind    string
	Payload interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Payload: payload})
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := []string{}
	for _, s := range n.sent {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

type testEnv struct {
	svc      *LndhubService
	mlnd     *lndmock.MockLND
	external *lndmock.MockLND
	store    *ledger.MemoryStore
	records  *dbmock.RecordStore
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mlnd, err := lndmock.NewMockLND("1234567890abcdef", 10)
	require.NoError(t, err)
	external, err := lndmock.NewMockLND("1234567890abcdefabcd", 0)
	require.NoError(t, err)

	store := ledger.NewMemoryStore()
	records := dbmock.NewRecordStore()
	notifier := &recordingNotifier{}
	svc := &LndhubService{
		Config: &Config{
			JWTSecret:               []byte("supersecret"),
			JWTAccessTokenExpiry:    3600,
			JWTRefreshTokenExpiry:   7200,
			Currency:                common.DefaultCurrency,
			ReserveAccount:          common.DefaultReserveAccount,
			BitcoinNetwork:          "regtest",
			PaymentTimeout:          200,
			PendingPaymentsInterval: 1,
			InvoiceExpiry:           3600,
		},
		Book:      ledger.NewBook(store),
		Records:   records,
		LndClient: mlnd,
		Logger:    lecho.New(io.Discard),
		Notifier:  notifier,
	}
	return &testEnv{
		svc:      svc,
		mlnd:     mlnd,
		external: external,
		store:    store,
		records:  records,
		notifier: notifier,
	}
}

func (env *testEnv) createUser(t *testing.T) int64 {
	t.Helper()
	user, err := env.svc.CreateUser(context.Background(), "", "")
	require.NoError(t, err)
	return user.ID
}

// fund credits the user through a settled invoice, the way real funds arrive.
func (env *testEnv) fund(t *testing.T, userID int64, amount int64) {
	t.Helper()
	ctx := context.Background()
	invoice, err := env.svc.AddInvoice(ctx, userID, amount, "top up")
	require.NoError(t, err)
	env.mlnd.SettleInvoice(invoice.Hash, amount)
	credited, err := env.svc.UpdatePendingInvoice(ctx, userID, invoice.Hash)
	require.NoError(t, err)
	require.True(t, credited)
}

func (env *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	balance, err := env.svc.Book.Balance(context.Background(), UserAccount(userID), common.DefaultCurrency)
	require.NoError(t, err)
	return balance
}

func (env *testEnv) externalInvoice(t *testing.T, amount int64, memo string) (string, string) {
	t.Helper()
	pr, hash, err := env.external.ExternalInvoice(amount, memo)
	require.NoError(t, err)
	return pr, hash
}

func lndmockSlow(delay time.Duration) lndmock.PaymentBehaviour {
	return lndmock.PaymentBehaviour{Delay: delay}
}
