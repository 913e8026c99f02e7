package service

import (
	"context"
	"errors"
	"time"
)

func (svc *LndhubService) StartInvoiceRoutine(ctx context.Context) (err error) {
	if svc.RabbitMQClient != nil {
		err = svc.RabbitMQClient.SubscribeToLndInvoices(ctx, svc.OnInvoiceUpdate)
	} else {
		err = svc.InvoiceUpdateSubscription(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		// in case of an error in this routine, we want to restart the service
		return err
	}
	return nil
}

func (svc *LndhubService) StartTransactionRoutine(ctx context.Context) error {
	err := svc.TransactionSubscription(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// StartPendingPaymentRoutine sweeps pending payments once at startup. After
// that payments are resolved from RabbitMQ payment events when a client is
// configured, else by sweeping every PendingPaymentsInterval seconds.
func (svc *LndhubService) StartPendingPaymentRoutine(ctx context.Context) error {
	if svc.RabbitMQClient != nil {
		if err := svc.CheckAllPendingOutgoingPayments(ctx); err != nil {
			svc.Logger.Errorf("Pending payment sweep failed: %v", err)
		}
		err := svc.RabbitMQClient.FinalizeInitializedPayments(ctx, svc)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	interval := time.Duration(svc.Config.PendingPaymentsInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := svc.CheckAllPendingOutgoingPayments(ctx); err != nil {
			svc.Logger.Errorf("Pending payment sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
