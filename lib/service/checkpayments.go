package service

import (
	"context"
	"errors"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getsentry/sentry-go"
)

func (svc *LndhubService) GetAllPendingPayments(ctx context.Context) ([]ledger.Entry, error) {
	return svc.Book.FindEntries(ctx, ledger.Filter{
		Type:    common.EntryTypePayment,
		Pending: ledger.PendingOnly(),
	})
}

// IsPendingPayment reports whether the ledger holds a pending payment for hash.
func (svc *LndhubService) IsPendingPayment(ctx context.Context, hash string) (bool, error) {
	return svc.Book.Exists(ctx, ledger.Filter{
		Hash:    hash,
		Type:    common.EntryTypePayment,
		Pending: ledger.PendingOnly(),
	})
}

// CheckAllPendingOutgoingPayments asks the node about every pending payment of
// every user. Errors are logged and the sweep goes on.
func (svc *LndhubService) CheckAllPendingOutgoingPayments(ctx context.Context) error {
	pending, err := svc.GetAllPendingPayments(ctx)
	if err != nil {
		return err
	}
	svc.Logger.Infof("Found %d pending payments", len(pending))
	return svc.CheckPendingOutgoingPayments(ctx, pending)
}

func (svc *LndhubService) CheckPendingOutgoingPayments(ctx context.Context, pending []ledger.Entry) error {
	for _, hash := range uniqueHashes(pending) {
		if err := svc.TrackOutgoingPaymentStatus(ctx, hash); err != nil {
			svc.Logger.Errorf("Could not resolve pending payment hash:%s: %v", hash, err)
		}
	}
	return nil
}

// UpdatePendingPayments resolves the user's pending payments against the node.
func (svc *LndhubService) UpdatePendingPayments(ctx context.Context, userID int64) error {
	pending, err := svc.Book.FindEntries(ctx, ledger.Filter{
		Account:  UserAccount(userID),
		Currency: svc.currency(),
		Type:     common.EntryTypePayment,
		Pending:  ledger.PendingOnly(),
	})
	if err != nil {
		return err
	}
	for _, hash := range uniqueHashes(pending) {
		if err := svc.TrackOutgoingPaymentStatus(ctx, hash); err != nil {
			return err
		}
	}
	return nil
}

func (svc *LndhubService) TrackOutgoingPaymentStatus(ctx context.Context, hash string) error {
	status, err := svc.LndClient.GetPaymentStatus(ctx, hash)
	if err != nil {
		return &UpstreamUnavailableError{Op: "track payment", Err: err}
	}
	switch status.State {
	case lnd.PaymentSucceeded:
		svc.Logger.Infof("Completed payment detected: hash:%s fee:%d", hash, status.Fee)
		return svc.HandleSuccessfulPayment(ctx, hash)
	case lnd.PaymentFailed:
		svc.Logger.Infof("Failed payment detected: hash:%s reason:%s", hash, status.FailureReason)
		return svc.HandleFailedPayment(ctx, hash, errors.New(status.FailureReason))
	default:
		svc.Logger.Debugf("In-flight payment detected: hash:%s", hash)
		return nil
	}
}

// HandleSuccessfulPayment clears the pending flag. Calling it again is a no-op.
func (svc *LndhubService) HandleSuccessfulPayment(ctx context.Context, hash string) error {
	cleared, err := svc.Book.ClearPending(ctx, hash, common.EntryTypePayment, "")
	if err != nil {
		return &InternalReconciliationError{Op: "clear pending payment", Hash: hash, Err: err}
	}
	for _, id := range cleared {
		svc.notifyEntryOwner(ctx, id, common.NotificationPaymentSettled)
	}
	return nil
}

// HandleFailedPayment voids the pending debit for hash. Only the caller whose
// ClearPending flipped the entry voids it, so concurrent failure reports
// produce a single reversal.
func (svc *LndhubService) HandleFailedPayment(ctx context.Context, hash string, reason error) error {
	cleared, err := svc.Book.ClearPending(ctx, hash, common.EntryTypePayment, reason.Error())
	if err != nil {
		return &InternalReconciliationError{Op: "clear pending payment", Hash: hash, Err: err}
	}
	for _, id := range cleared {
		if err := svc.voidFailedEntry(ctx, id, hash, reason); err != nil {
			return err
		}
	}
	return nil
}

// voidFailedEntry reverses a failed payment entry the caller has already
// cleared from pending.
func (svc *LndhubService) voidFailedEntry(ctx context.Context, id int64, hash string, reason error) error {
	_, err := svc.Book.Void(ctx, id, reason.Error())
	if errors.Is(err, ledger.ErrAlreadyVoided) {
		return nil
	}
	if err != nil {
		// the entry is no longer pending, so no sweep will retry this
		reconErr := &InternalReconciliationError{Op: "void failed payment", Hash: hash, Err: err}
		svc.Logger.Error(reconErr)
		sentry.CaptureException(reconErr)
		return reconErr
	}
	svc.Logger.Infof("Voided failed payment entry_id:%d hash:%s reason:%v", id, hash, reason)
	svc.notifyEntryOwner(ctx, id, common.NotificationPaymentFailed)
	return nil
}

func (svc *LndhubService) notifyEntryOwner(ctx context.Context, id int64, kind string) {
	entry, err := svc.Book.GetEntry(ctx, id)
	if err != nil {
		svc.Logger.Errorf("Could not load entry %d for notification: %v", id, err)
		return
	}
	for _, leg := range entry.Legs {
		if userID, ok := UserIDFromAccount(leg.Account); ok {
			svc.notify(ctx, userID, kind, map[string]interface{}{
				"hash":   entry.Meta.Hash,
				"amount": -entry.AccountAmount(leg.Account),
				"fee":    entry.Meta.Fee,
				"error":  entry.Meta.Error,
			})
		}
	}
}

func uniqueHashes(entries []ledger.Entry) []string {
	seen := map[string]struct{}{}
	hashes := []string{}
	for _, entry := range entries {
		if _, ok := seen[entry.Meta.Hash]; ok {
			continue
		}
		seen[entry.Meta.Hash] = struct{}{}
		hashes = append(hashes, entry.Meta.Hash)
	}
	return hashes
}
