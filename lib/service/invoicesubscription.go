package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getsentry/sentry-go"
)

// OnInvoiceUpdate handles a settle event pushed by the node. It ends in the
// same claim as the polling path, so a settle seen twice credits once.
func (svc *LndhubService) OnInvoiceUpdate(ctx context.Context, status *lnd.InvoiceStatus) error {
	if !status.Confirmed {
		svc.Logger.Debugf("Invoice not settled yet. Ignoring update. hash:%s", status.ID)
		return nil
	}
	record, err := svc.Records.FindInvoice(ctx, status.ID)
	if errors.Is(err, sql.ErrNoRows) {
		svc.Logger.Infof("Invoice not found. Ignoring. hash:%s", status.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if !record.Pending {
		return nil
	}
	_, err = svc.UpdatePendingInvoice(ctx, record.UserID, status.ID)
	return err
}

// OnChainTransaction credits every user owning one of the transaction's
// output addresses.
func (svc *LndhubService) OnChainTransaction(ctx context.Context, tx *lnd.ChainTransaction) error {
	if tx.IsOutgoing {
		if !tx.IsConfirmed {
			return nil
		}
		cleared, err := svc.Book.ClearPending(ctx, tx.ID, "", "")
		if err != nil {
			return err
		}
		for _, id := range cleared {
			svc.notifyEntryOwner(ctx, id, common.NotificationOnchainSent)
		}
		return nil
	}
	addresses := tx.OutputAddresses
	for _, output := range tx.Outputs {
		addresses = append(addresses, output.Address)
	}
	users := map[int64]struct{}{}
	for _, address := range addresses {
		userID, err := svc.Records.FindUserByAddress(ctx, address)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}
		users[userID] = struct{}{}
	}
	for userID := range users {
		if !tx.IsConfirmed {
			svc.notify(ctx, userID, common.NotificationOnchainPending, map[string]interface{}{
				"txid":   tx.ID,
				"amount": tx.Tokens,
			})
			continue
		}
		if err := svc.UpdateOnchainPayments(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (svc *LndhubService) subscriptionBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// InvoiceUpdateSubscription consumes the node's invoice stream until ctx is
// done, reconnecting with backoff whenever the stream breaks.
func (svc *LndhubService) InvoiceUpdateSubscription(ctx context.Context) error {
	b := svc.subscriptionBackoff(ctx)
	return backoff.RetryNotify(func() error {
		stream, err := svc.LndClient.SubscribeInvoices(ctx)
		if err != nil {
			return err
		}
		svc.Logger.Info("Invoice subscription started")
		b.Reset()
		for {
			status, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			if err := svc.OnInvoiceUpdate(ctx, status); err != nil {
				svc.Logger.Errorf("Error processing invoice update hash:%s: %v", status.ID, err)
				sentry.CaptureException(err)
			}
		}
	}, b, func(err error, wait time.Duration) {
		svc.Logger.Errorf("Invoice subscription failed, reconnecting in %v: %v", wait, err)
		sentry.CaptureException(err)
	})
}

func (svc *LndhubService) TransactionSubscription(ctx context.Context) error {
	b := svc.subscriptionBackoff(ctx)
	return backoff.RetryNotify(func() error {
		stream, err := svc.LndClient.SubscribeTransactions(ctx)
		if err != nil {
			return err
		}
		svc.Logger.Info("Chain transaction subscription started")
		b.Reset()
		for {
			tx, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			if err := svc.OnChainTransaction(ctx, tx); err != nil {
				svc.Logger.Errorf("Error processing chain transaction txid:%s: %v", tx.ID, err)
				sentry.CaptureException(err)
			}
		}
	}, b, func(err error, wait time.Duration) {
		svc.Logger.Errorf("Chain transaction subscription failed, reconnecting in %v: %v", wait, err)
	})
}
