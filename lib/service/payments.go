package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
)

type PayInvoiceResult struct {
	Status      string `json:"status"`
	Hash        string `json:"payment_hash"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Description string `json:"description"`
	EntryID     int64  `json:"-"`
}

type dispatchResult struct {
	status *lnd.PaymentStatus
	err    error
}

func (svc *LndhubService) paymentTimeout() time.Duration {
	if svc.Config.PaymentTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(svc.Config.PaymentTimeout) * time.Millisecond
}

// PayInvoice debits the user and pays the invoice. The result is "success" or
// "pending"; a definitive failure is returned as *PaymentFailedError after
// the debit has been voided.
func (svc *LndhubService) PayInvoice(ctx context.Context, userID int64, paymentRequest string) (*PayInvoiceResult, error) {
	paymentRequest = NormalizePaymentRequest(paymentRequest)
	if _, err := svc.DecodePaymentRequest(paymentRequest); err != nil {
		return nil, err
	}
	decoded, err := svc.LndClient.DecodeInvoice(ctx, paymentRequest)
	if err != nil {
		return nil, &InvalidInvoiceError{Reason: "could not decode payment request", Err: err}
	}
	if decoded.Tokens <= 0 {
		return nil, &InvalidInvoiceError{Reason: "zero amount invoices are not supported"}
	}

	route, err := svc.LndClient.ProbeRoute(ctx, decoded.Destination, decoded.Tokens, decoded.PaymentAddr)
	if err != nil {
		return nil, &NoRouteError{Destination: decoded.Destination, Err: err}
	}

	entryID, err := svc.commitPendingPayment(ctx, userID, decoded, route)
	if err != nil {
		return nil, err
	}
	result := &PayInvoiceResult{
		Status:      common.PaymentStatusPending,
		Hash:        decoded.ID,
		Amount:      decoded.Tokens,
		Fee:         route.Fee,
		Description: decoded.Description,
		EntryID:     entryID,
	}

	done := make(chan dispatchResult, 1)
	go func() {
		// detached: the payment keeps going after the wait bound or a client disconnect
		status, err := svc.LndClient.PayViaRoute(context.Background(), decoded.ID, route)
		done <- dispatchResult{status: status, err: err}
	}()

	timer := time.NewTimer(svc.paymentTimeout())
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, svc.failDispatch(ctx, entryID, decoded.ID, res.err.Error())
		}
		switch res.status.State {
		case lnd.PaymentSucceeded:
			if err := svc.settlePaymentEntry(ctx, entryID, decoded.ID); err != nil {
				// the sweep clears it later
				svc.Logger.Errorf("Payment succeeded but could not be finalized hash:%s: %v", decoded.ID, err)
				return result, nil
			}
			result.Status = common.PaymentStatusSuccess
			return result, nil
		case lnd.PaymentFailed:
			return nil, svc.failDispatch(ctx, entryID, decoded.ID, res.status.FailureReason)
		default:
			return result, nil
		}
	case <-timer.C:
		svc.Logger.Infof("Payment still in flight after %v, leaving it pending: user_id:%v hash:%s", svc.paymentTimeout(), userID, decoded.ID)
		return result, nil
	}
}

func (svc *LndhubService) commitPendingPayment(ctx context.Context, userID int64, decoded *lnd.DecodedInvoice, route *lnd.Route) (int64, error) {
	account := UserAccount(userID)
	unlock := svc.lockAccount(account)
	defer unlock()

	total := decoded.Tokens + route.Fee
	entry := ledger.NewEntry(decoded.Description, svc.currency()).
		Debit(account, total).
		Credit(svc.reserveAccount(), total).
		WithMeta(ledger.Meta{
			Hash:    decoded.ID,
			Type:    common.EntryTypePayment,
			Pending: true,
			Fee:     route.Fee,
		}).
		WithExclusiveKey(paymentKey(decoded.ID)).
		Entry()
	id, err := svc.Book.CommitWithBalanceCheck(ctx, entry, account)
	if errors.Is(err, ledger.ErrDuplicateEntry) {
		return 0, &InvalidInvoiceError{Reason: "invoice is already paid or being paid"}
	}
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return 0, &InsufficientBalanceError{Required: total, Err: err}
	}
	if err != nil {
		return 0, fmt.Errorf("could not debit user %d: %w", userID, err)
	}
	svc.Logger.Infof("Payment debited: user_id:%v hash:%s amount:%d fee:%d", userID, decoded.ID, decoded.Tokens, route.Fee)
	return id, nil
}

// paymentKey allows one live debit per invoice hash across all users.
func paymentKey(hash string) string {
	return common.EntryTypePayment + ":" + hash
}

// failDispatch voids the entry this dispatch committed, never another debit
// for the same hash.
func (svc *LndhubService) failDispatch(ctx context.Context, entryID int64, hash, reason string) error {
	svc.Logger.Infof("Payment failed entry_id:%d hash:%s reason:%s", entryID, hash, reason)
	cleared, err := svc.Book.ClearPendingEntry(ctx, entryID, reason)
	if err != nil {
		return &InternalReconciliationError{Op: "clear pending payment", Hash: hash, Err: err}
	}
	if cleared {
		if err := svc.voidFailedEntry(ctx, entryID, hash, errors.New(reason)); err != nil {
			return err
		}
	}
	return &PaymentFailedError{Hash: hash, Reason: reason}
}

func (svc *LndhubService) settlePaymentEntry(ctx context.Context, entryID int64, hash string) error {
	cleared, err := svc.Book.ClearPendingEntry(ctx, entryID, "")
	if err != nil {
		return &InternalReconciliationError{Op: "clear pending payment", Hash: hash, Err: err}
	}
	if cleared {
		svc.notifyEntryOwner(ctx, entryID, common.NotificationPaymentSettled)
	}
	return nil
}
