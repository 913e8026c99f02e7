// Package dbmock keeps users, invoice records and onchain addresses in memory
// for tests.
package dbmock

import (
	"context"
	"database/sql"
	"sync"

	"github.com/getAlby/lnledger/db/models"
)

// RecordStore is an in-memory record store with the same claim semantics as
// db.RecordStore. FindInvoiceErr, when set, is returned by FindInvoice.
type RecordStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]*models.User
	invoices  map[string]*models.InvoiceUser
	addresses map[string]int64

	FindInvoiceErr error
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		users:     map[int64]*models.User{},
		invoices:  map[string]*models.InvoiceUser{},
		addresses: map[string]int64{},
	}
}

func (r *RecordStore) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *RecordStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *RecordStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Login == login {
			copied := *user
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *RecordStore) CreateInvoice(ctx context.Context, invoice *models.InvoiceUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *invoice
	r.invoices[invoice.Hash] = &copied
	return nil
}

func (r *RecordStore) FindInvoice(ctx context.Context, hash string) (*models.InvoiceUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FindInvoiceErr != nil {
		return nil, r.FindInvoiceErr
	}
	invoice, ok := r.invoices[hash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *invoice
	return &copied, nil
}

func (r *RecordStore) PendingInvoices(ctx context.Context, userID int64) ([]models.InvoiceUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := []models.InvoiceUser{}
	for _, invoice := range r.invoices {
		if invoice.UserID == userID && invoice.Pending {
			pending = append(pending, *invoice)
		}
	}
	return pending, nil
}

func (r *RecordStore) ClaimInvoice(ctx context.Context, userID int64, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoice, ok := r.invoices[hash]
	if !ok || invoice.UserID != userID || !invoice.Pending {
		return false, nil
	}
	invoice.Pending = false
	return true, nil
}

func (r *RecordStore) ReleaseInvoice(ctx context.Context, userID int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice, ok := r.invoices[hash]; ok && invoice.UserID == userID {
		invoice.Pending = true
	}
	return nil
}

func (r *RecordStore) AddOnchainAddress(ctx context.Context, userID int64, address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.addresses[address]; !ok {
		r.addresses[address] = userID
	}
	return nil
}

func (r *RecordStore) OnchainAddresses(ctx context.Context, userID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	addresses := []string{}
	for address, owner := range r.addresses {
		if owner == userID {
			addresses = append(addresses, address)
		}
	}
	return addresses, nil
}

func (r *RecordStore) FindUserByAddress(ctx context.Context, address string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.addresses[address]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return userID, nil
}
