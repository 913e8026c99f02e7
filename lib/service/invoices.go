package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/db/models"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getsentry/sentry-go"
	"github.com/lightningnetwork/lnd/zpay32"
)

// AddInvoice creates an invoice on the node and records which user it belongs to.
func (svc *LndhubService) AddInvoice(ctx context.Context, userID int64, amount int64, memo string) (*models.InvoiceUser, error) {
	if amount <= 0 {
		return nil, &InvalidInvoiceError{Reason: "amount must be positive"}
	}
	svc.Logger.Infof("Adding invoice: user_id:%v memo:%s value:%v", userID, memo, amount)

	invoice, err := svc.LndClient.CreateInvoice(ctx, amount, memo, svc.Config.InvoiceExpiry)
	if err != nil {
		return nil, &UpstreamUnavailableError{Op: "create invoice", Err: err}
	}

	record := &models.InvoiceUser{
		Hash:           invoice.ID,
		UserID:         userID,
		Pending:        true,
		Amount:         amount,
		Memo:           memo,
		PaymentRequest: invoice.PaymentRequest,
	}
	if err := svc.Records.CreateInvoice(ctx, record); err != nil {
		// the node invoice exists but nobody would ever be credited for it
		reconErr := &InternalReconciliationError{Op: "store invoice", Hash: invoice.ID, Err: err}
		svc.Logger.Error(reconErr)
		sentry.CaptureException(reconErr)
		return nil, reconErr
	}
	return record, nil
}

// UpdatePendingInvoices credits every pending invoice of the user the node
// reports as paid.
func (svc *LndhubService) UpdatePendingInvoices(ctx context.Context, userID int64) error {
	pending, err := svc.Records.PendingInvoices(ctx, userID)
	if err != nil {
		return err
	}
	for _, invoice := range pending {
		if _, err := svc.UpdatePendingInvoice(ctx, userID, invoice.Hash); err != nil {
			return err
		}
	}
	return nil
}

// UpdatePendingInvoice reports whether this call credited the invoice. Both
// the polling sweep and the node's settle events end up here; the record
// claim makes sure only one of them commits the credit.
func (svc *LndhubService) UpdatePendingInvoice(ctx context.Context, userID int64, hash string) (bool, error) {
	status, err := svc.LndClient.GetInvoiceStatus(ctx, hash)
	if err != nil {
		return false, &UpstreamUnavailableError{Op: "lookup invoice", Err: err}
	}
	if !status.Confirmed {
		return false, nil
	}

	claimed, err := svc.Records.ClaimInvoice(ctx, userID, hash)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	record, err := svc.Records.FindInvoice(ctx, hash)
	if err != nil {
		return false, svc.releaseInvoice(ctx, userID, hash, err)
	}
	amount := status.Received
	if amount <= 0 {
		amount = record.Amount
	}
	if amount != record.Amount {
		svc.Logger.Infof("Incoming invoice amount mismatch. user_id:%v hash:%s, amt:%d, amt_paid:%d.", userID, hash, record.Amount, amount)
	}

	entry := ledger.NewEntry(record.Memo, svc.currency()).
		Credit(UserAccount(userID), amount).
		Debit(svc.reserveAccount(), amount).
		WithMeta(ledger.Meta{Hash: hash, Type: common.EntryTypeInvoice}).
		WithIdempotencyKey(common.EntryTypeInvoice + ":" + hash).
		Entry()
	if _, err := svc.Book.Commit(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateEntry) {
			svc.Logger.Infof("Invoice already credited: user_id:%v hash:%s", userID, hash)
			return false, nil
		}
		return false, svc.releaseInvoice(ctx, userID, hash, err)
	}

	svc.Logger.Infof("Invoice credited: user_id:%v hash:%s amount:%d", userID, hash, amount)
	svc.notify(ctx, userID, common.NotificationInvoicePaid, map[string]interface{}{
		"hash":   hash,
		"amount": amount,
		"memo":   record.Memo,
	})
	return true, nil
}

// InvoicePaid reconciles one of the user's invoices and reports whether it
// has been credited. sql.ErrNoRows is returned for invoices of other users.
func (svc *LndhubService) InvoicePaid(ctx context.Context, userID int64, hash string) (bool, error) {
	record, err := svc.Records.FindInvoice(ctx, hash)
	if err != nil {
		return false, err
	}
	if record.UserID != userID {
		return false, sql.ErrNoRows
	}
	if !record.Pending {
		return true, nil
	}
	if _, err := svc.UpdatePendingInvoice(ctx, userID, hash); err != nil {
		return false, err
	}
	record, err = svc.Records.FindInvoice(ctx, hash)
	if err != nil {
		return false, err
	}
	return !record.Pending, nil
}

// RepublishInvoiceNotifications sends the settle notification again for every
// invoice credited in [start, end). It returns how many were found and how many
// could not be delivered.
func (svc *LndhubService) RepublishInvoiceNotifications(ctx context.Context, start, end time.Time, dryRun bool) (found int, failed int, err error) {
	entries, err := svc.Book.FindEntries(ctx, ledger.Filter{Type: common.EntryTypeInvoice})
	if err != nil {
		return 0, 0, err
	}
	for i := range entries {
		entry := &entries[i]
		if entry.Voided || entry.IsReversal() || entry.CreatedAt.Before(start) || !entry.CreatedAt.Before(end) {
			continue
		}
		for _, leg := range entry.Legs {
			userID, ok := UserIDFromAccount(leg.Account)
			if !ok {
				continue
			}
			found++
			svc.Logger.Infof("Publishing invoice with hash %s", entry.Meta.Hash)
			if dryRun || svc.Notifier == nil {
				continue
			}
			err := svc.Notifier.Notify(ctx, userID, common.NotificationInvoicePaid, map[string]interface{}{
				"hash":   entry.Meta.Hash,
				"amount": entry.AccountAmount(leg.Account),
				"memo":   entry.Memo,
			})
			if err != nil {
				failed++
				svc.Logger.Error(err)
			}
		}
	}
	return found, failed, nil
}

// releaseInvoice puts a claimed invoice back to pending after its credit failed.
func (svc *LndhubService) releaseInvoice(ctx context.Context, userID int64, hash string, cause error) error {
	reconErr := &InternalReconciliationError{Op: "credit invoice", Hash: hash, Err: cause}
	if err := svc.Records.ReleaseInvoice(ctx, userID, hash); err != nil {
		svc.Logger.Errorf("Could not release invoice claim user_id:%v hash:%s: %v", userID, hash, err)
	}
	svc.Logger.Error(reconErr)
	sentry.CaptureException(reconErr)
	return reconErr
}

// DecodePaymentRequest is an offline check that the BOLT11 string parses and
// belongs to the configured network.
func (svc *LndhubService) DecodePaymentRequest(paymentRequest string) (*zpay32.Invoice, error) {
	params, err := svc.Config.NetworkParams()
	if err != nil {
		return nil, err
	}
	invoice, err := zpay32.Decode(NormalizePaymentRequest(paymentRequest), params)
	if err != nil {
		return nil, &InvalidInvoiceError{Reason: "malformed payment request or wrong network", Err: err}
	}
	return invoice, nil
}

func NormalizePaymentRequest(paymentRequest string) string {
	paymentRequest = strings.ToLower(strings.TrimSpace(paymentRequest))
	return strings.TrimPrefix(paymentRequest, "lightning:")
}
