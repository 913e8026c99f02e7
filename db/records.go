package db

import (
	"context"

	"github.com/getAlby/lnledger/db/models"
	"github.com/uptrace/bun"
)

// RecordStore persists users, invoice ownership and onchain addresses.
type RecordStore struct {
	db *bun.DB
}

func NewRecordStore(db *bun.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (s *RecordStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	user := new(models.User)
	err := s.db.NewSelect().Model(user).Where("id = ?", userID).Limit(1).Scan(ctx)
	return user, err
}

func (s *RecordStore) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	user := new(models.User)
	err := s.db.NewSelect().Model(user).Where("login = ?", login).Limit(1).Scan(ctx)
	return user, err
}

func (s *RecordStore) CreateInvoice(ctx context.Context, invoice *models.InvoiceUser) error {
	_, err := s.db.NewInsert().Model(invoice).Exec(ctx)
	return err
}

func (s *RecordStore) FindInvoice(ctx context.Context, hash string) (*models.InvoiceUser, error) {
	invoice := new(models.InvoiceUser)
	err := s.db.NewSelect().Model(invoice).Where("hash = ?", hash).Limit(1).Scan(ctx)
	return invoice, err
}

func (s *RecordStore) PendingInvoices(ctx context.Context, userID int64) ([]models.InvoiceUser, error) {
	invoices := []models.InvoiceUser{}
	err := s.db.NewSelect().
		Model(&invoices).
		Where("user_id = ?", userID).
		Where("pending").
		OrderExpr("created_at ASC").
		Scan(ctx)
	return invoices, err
}

// ClaimInvoice flips pending to false and reports whether this call did it.
func (s *RecordStore) ClaimInvoice(ctx context.Context, userID int64, hash string) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*models.InvoiceUser)(nil)).
		Set("pending = FALSE").
		Where("hash = ?", hash).
		Where("user_id = ?", userID).
		Where("pending").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReleaseInvoice undoes a claim whose credit could not be committed.
func (s *RecordStore) ReleaseInvoice(ctx context.Context, userID int64, hash string) error {
	_, err := s.db.NewUpdate().
		Model((*models.InvoiceUser)(nil)).
		Set("pending = TRUE").
		Where("hash = ?", hash).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

func (s *RecordStore) AddOnchainAddress(ctx context.Context, userID int64, address string) error {
	_, err := s.db.NewInsert().
		Model(&models.OnchainAddress{UserID: userID, Address: address}).
		On("CONFLICT (address) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *RecordStore) OnchainAddresses(ctx context.Context, userID int64) ([]string, error) {
	addresses := []string{}
	err := s.db.NewSelect().
		Model((*models.OnchainAddress)(nil)).
		Column("address").
		Where("user_id = ?", userID).
		OrderExpr("id ASC").
		Scan(ctx, &addresses)
	return addresses, err
}

func (s *RecordStore) FindUserByAddress(ctx context.Context, address string) (int64, error) {
	var userID int64
	err := s.db.NewSelect().
		Model((*models.OnchainAddress)(nil)).
		Column("user_id").
		Where("address = ?", address).
		Limit(1).
		Scan(ctx, &userID)
	return userID, err
}
