package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/db/models"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getAlby/lnledger/rabbitmq"
	"github.com/labstack/gommon/random"
	"github.com/ziflex/lecho/v3"
)

const alphaNumBytes = random.Alphanumeric

// RecordStore keeps the non-ledger records: users, which user an invoice
// belongs to and the onchain addresses handed out.
type RecordStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, userID int64) (*models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)

	CreateInvoice(ctx context.Context, invoice *models.InvoiceUser) error
	FindInvoice(ctx context.Context, hash string) (*models.InvoiceUser, error)
	PendingInvoices(ctx context.Context, userID int64) ([]models.InvoiceUser, error)
	ClaimInvoice(ctx context.Context, userID int64, hash string) (bool, error)
	ReleaseInvoice(ctx context.Context, userID int64, hash string) error

	AddOnchainAddress(ctx context.Context, userID int64, address string) error
	OnchainAddresses(ctx context.Context, userID int64) ([]string, error)
	FindUserByAddress(ctx context.Context, address string) (int64, error)
}

type LndhubService struct {
	Config         *Config
	Book           *ledger.Book
	Records        RecordStore
	LndClient      lnd.LightningClientWrapper
	Logger         *lecho.Logger
	Notifier       Notifier
	Pubsub         *Pubsub
	RabbitMQClient rabbitmq.Client
	Liveness       *lnd.LivenessMonitor

	accountLocksMu sync.Mutex
	accountLocks   map[ledger.Account]*sync.Mutex
}

// UserAccount is the liability account holding a user's balance.
func UserAccount(userID int64) ledger.Account {
	return ledger.NewAccount(common.AccountRootLiabilities, common.AccountCustomer, strconv.FormatInt(userID, 10))
}

// UserIDFromAccount is the inverse of UserAccount.
func UserIDFromAccount(account ledger.Account) (int64, bool) {
	parts := account.Parts()
	if len(parts) != 3 || parts[0] != common.AccountRootLiabilities || parts[1] != common.AccountCustomer {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	return id, err == nil
}

func (svc *LndhubService) reserveAccount() ledger.Account {
	if svc.Config.ReserveAccount == "" {
		return ledger.Account(common.DefaultReserveAccount)
	}
	return ledger.Account(svc.Config.ReserveAccount)
}

func (svc *LndhubService) currency() string {
	if svc.Config.Currency == "" {
		return common.DefaultCurrency
	}
	return svc.Config.Currency
}

// lockAccount serializes debits on one account within this process.
func (svc *LndhubService) lockAccount(account ledger.Account) func() {
	svc.accountLocksMu.Lock()
	if svc.accountLocks == nil {
		svc.accountLocks = map[ledger.Account]*sync.Mutex{}
	}
	mu, ok := svc.accountLocks[account]
	if !ok {
		mu = &sync.Mutex{}
		svc.accountLocks[account] = mu
	}
	svc.accountLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (svc *LndhubService) notify(ctx context.Context, userID int64, kind string, payload interface{}) {
	if svc.Pubsub != nil {
		svc.Pubsub.Notify(ctx, userID, kind, payload)
	}
	if svc.Notifier == nil {
		return
	}
	if err := svc.Notifier.Notify(ctx, userID, kind, payload); err != nil {
		svc.Logger.Errorf("Failed to send %s notification to user %d: %v", kind, userID, err)
	}
}
