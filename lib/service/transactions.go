package service

import (
	"context"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/ledger"
)

type Transaction struct {
	ID          int64  `json:"id"`
	CreatedAt   int64  `json:"timestamp"`
	Amount      int64  `json:"value"`
	Description string `json:"memo"`
	Hash        string `json:"payment_hash"`
	Fee         int64  `json:"fee"`
	Type        string `json:"type"`
	Pending     bool   `json:"pending"`
}

// Reconcile brings the user's ledger up to date with the node. It is safe to
// run concurrently and repeatedly.
func (svc *LndhubService) Reconcile(ctx context.Context, userID int64) error {
	if err := svc.UpdatePendingInvoices(ctx, userID); err != nil {
		return err
	}
	if err := svc.UpdatePendingPayments(ctx, userID); err != nil {
		return err
	}
	return svc.UpdateOnchainPayments(ctx, userID)
}

func (svc *LndhubService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	if err := svc.Reconcile(ctx, userID); err != nil {
		return 0, err
	}
	return svc.Book.Balance(ctx, UserAccount(userID), svc.currency())
}

// GetTransactions lists the user's entries oldest first. Voided entries and
// their reversals cancel out and are left out.
func (svc *LndhubService) GetTransactions(ctx context.Context, userID int64) ([]Transaction, error) {
	if err := svc.Reconcile(ctx, userID); err != nil {
		return nil, err
	}
	account := UserAccount(userID)
	history, err := svc.Book.History(ctx, account, svc.currency())
	if err != nil {
		return nil, err
	}
	transactions := make([]Transaction, 0, len(history))
	for i := range history {
		entry := &history[i]
		if entry.Voided || entry.IsReversal() {
			continue
		}
		transactions = append(transactions, Transaction{
			ID:          entry.ID,
			CreatedAt:   entry.CreatedAt.Unix(),
			Amount:      entry.AccountAmount(account),
			Description: transactionDescription(entry),
			Hash:        entry.Meta.Hash,
			Fee:         entry.Meta.Fee,
			Type:        transactionType(entry),
			Pending:     entry.Meta.Pending,
		})
	}
	return transactions, nil
}

func transactionDescription(entry *ledger.Entry) string {
	if entry.Meta.Pending {
		return common.DescriptionPending
	}
	if entry.Memo != "" {
		return entry.Memo
	}
	switch entry.Meta.Type {
	case common.EntryTypePayment:
		return common.DescriptionPaymentSent
	case common.EntryTypeEarn:
		return common.DescriptionEarn
	default:
		return common.DescriptionPaymentReceived
	}
}

func transactionType(entry *ledger.Entry) string {
	switch entry.Meta.Type {
	case common.EntryTypeInvoice:
		if entry.Meta.Pending {
			return common.TransactionTypeUnconfirmedInvoice
		}
		return common.TransactionTypePaidInvoice
	case common.EntryTypePayment:
		if entry.Meta.Pending {
			return common.TransactionTypeInflightPayment
		}
		return common.TransactionTypePayment
	case common.EntryTypeEarn:
		return common.TransactionTypeEarn
	case common.EntryTypeOnchainReceipt:
		return common.TransactionTypeOnchainReceipt
	default:
		return entry.Meta.Type
	}
}
