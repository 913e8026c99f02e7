package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	"github.com/lightningnetwork/lnd/lnrpc"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool is a classic buffer pool pattern that allows more clever reuse of heap memory.
// Instead of allocating new memory everytime we need to encode a notification we
// reuse buffers from this buffer pool.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"

	invoiceSettledRoutingKey  = "invoice.incoming.settled"
	outgoingPaymentRoutingKey = "payment.outgoing.#"
)

type IncomingInvoiceHandler = func(ctx context.Context, invoice *lnd.InvoiceStatus) error

type Client interface {
	SubscribeToLndInvoices(context.Context, IncomingInvoiceHandler) error
	FinalizeInitializedPayments(context.Context, LndHubService) error
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	// Close will close all connections to rabbitmq
	Close() error
}

// LndHubService is the part of the service the payment finalizer drives.
type LndHubService interface {
	GetAllPendingPayments(context.Context) ([]ledger.Entry, error)
	IsPendingPayment(ctx context.Context, hash string) (bool, error)
	HandleSuccessfulPayment(ctx context.Context, hash string) error
	HandleFailedPayment(ctx context.Context, hash string, reason error) error
}

type DefaultClient struct {
	amqpClient AMQPClient

	logger *lecho.Logger

	lndInvoiceConsumerQueueName string
	lndPaymentConsumerQueueName string
	lndInvoiceExchange          string
	lndPaymentExchange          string
	notificationExchange        string

	pendingRefreshInterval time.Duration

	declareOnce sync.Once
	declareErr  error
}

type ClientOption = func(client *DefaultClient)

func WithLndInvoiceExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.lndInvoiceExchange = exchange
	}
}

func WithLndPaymentExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.lndPaymentExchange = exchange
	}
}

func WithNotificationExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.notificationExchange = exchange
	}
}

func WithLndInvoiceConsumerQueueName(name string) ClientOption {
	return func(client *DefaultClient) {
		client.lndInvoiceConsumerQueueName = name
	}
}

func WithLndPaymentConsumerQueueName(name string) ClientOption {
	return func(client *DefaultClient) {
		client.lndPaymentConsumerQueueName = name
	}
}

func WithPendingRefreshInterval(interval time.Duration) ClientOption {
	return func(client *DefaultClient) {
		client.pendingRefreshInterval = interval
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		lndInvoiceConsumerQueueName: "lnd_invoice_consumer",
		lndPaymentConsumerQueueName: "lnd_payment_consumer",
		lndInvoiceExchange:          "lnd_invoice",
		lndPaymentExchange:          "lnd_payment",
		notificationExchange:        "lnledger_notification",

		pendingRefreshInterval: time.Hour,
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

// FinalizeInitializedPayments consumes the node's payment events and resolves
// pending ledger payments with them. The pending table is only a cache: a
// miss is looked up in the ledger before the event is acked and dropped.
func (client *DefaultClient) FinalizeInitializedPayments(ctx context.Context, svc LndHubService) error {
	deliveryChan, err := client.amqpClient.Listen(ctx, client.lndPaymentExchange, outgoingPaymentRoutingKey, client.lndPaymentConsumerQueueName)
	if err != nil {
		return err
	}

	getPendingTable := func(ctx context.Context) (map[string]struct{}, error) {
		pendingByHash := map[string]struct{}{}
		pending, err := svc.GetAllPendingPayments(ctx)
		if err != nil {
			return pendingByHash, err
		}
		for _, entry := range pending {
			pendingByHash[entry.Meta.Hash] = struct{}{}
		}
		return pendingByHash, nil
	}

	pendingPayments, err := getPendingTable(ctx)
	if err != nil {
		return err
	}
	client.logger.Infof("Payment finalizer: Found %d pending payments", len(pendingPayments))

	ticker := time.NewTicker(client.pendingRefreshInterval)
	defer ticker.Stop()

	client.logger.Info("Starting payment finalizer rabbitmq consumer")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case <-ticker.C:
			pending, err := getPendingTable(ctx)
			if err != nil {
				return err
			}
			pendingPayments = pending
			client.logger.Infof("Payment finalizer: Found %d pending payments", len(pendingPayments))
		case delivery, ok := <-deliveryChan:
			if !ok {
				return errors.New("payment finalizer: disconnected from RabbitMQ")
			}

			payment := lnrpc.Payment{}
			if err := json.Unmarshal(delivery.Body, &payment); err != nil {
				captureErr(client.logger, err)
				nack(client.logger, delivery)
				continue
			}

			if _, ok := pendingPayments[payment.PaymentHash]; !ok {
				pending, err := svc.IsPendingPayment(ctx, payment.PaymentHash)
				if err != nil {
					captureErr(client.logger, err)
					nack(client.logger, delivery)
					continue
				}
				if !pending {
					ack(client.logger, delivery)
					continue
				}
			}

			status := lnd.PaymentStatusFromRPC(&payment)
			switch status.State {
			case lnd.PaymentSucceeded:
				err = svc.HandleSuccessfulPayment(ctx, payment.PaymentHash)
			case lnd.PaymentFailed:
				err = svc.HandleFailedPayment(ctx, payment.PaymentHash, errors.New(status.FailureReason))
			default:
				ack(client.logger, delivery)
				continue
			}
			if err != nil {
				captureErr(client.logger, err)
				nack(client.logger, delivery)
				continue
			}
			client.logger.Infof("Payment finalizer: resolved %s payment with hash: %s", status.State, payment.PaymentHash)
			delete(pendingPayments, payment.PaymentHash)
			ack(client.logger, delivery)
		}
	}
}

func (client *DefaultClient) SubscribeToLndInvoices(ctx context.Context, handler IncomingInvoiceHandler) error {
	deliveryChan, err := client.amqpClient.Listen(ctx, client.lndInvoiceExchange, invoiceSettledRoutingKey, client.lndInvoiceConsumerQueueName)
	if err != nil {
		return err
	}

	client.logger.Info("Starting RabbitMQ consumer loop")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case delivery, ok := <-deliveryChan:
			if !ok {
				return fmt.Errorf("Disconnected from RabbitMQ")
			}
			var invoice lnrpc.Invoice

			if err := json.Unmarshal(delivery.Body, &invoice); err != nil {
				captureErr(client.logger, err)

				// If we can't even Unmarshall the message we are dealing with
				// badly formatted events. In that case we simply Nack the message
				// and explicitly do not requeue it.
				nack(client.logger, delivery)
				continue
			}

			if err := handler(ctx, lnd.InvoiceStatusFromRPC(&invoice)); err != nil {
				captureErr(client.logger, err)

				// Not requeued: the polling sweep picks the invoice up again.
				nack(client.logger, delivery)
				continue
			}

			ack(client.logger, delivery)
		}
	}
}

// Publish sends a JSON notification to the notification exchange.
func (client *DefaultClient) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	client.declareOnce.Do(func() {
		client.declareErr = client.amqpClient.ExchangeDeclare(
			client.notificationExchange,
			// topic is a type of exchange that allows routing messages to different queue's bases on a routing key
			"topic",
			true,
			false,
			false,
			false,
			nil,
		)
	})
	if client.declareErr != nil {
		return client.declareErr
	}

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return err
	}

	err := client.amqpClient.PublishWithContext(ctx,
		client.notificationExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        buf.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Successfully published %s notification to rabbitmq", routingKey)
	return nil
}

func ack(logger *lecho.Logger, delivery amqp.Delivery) {
	if delivery.Acknowledger == nil {
		return
	}
	if err := delivery.Ack(false); err != nil {
		captureErr(logger, err)
	}
}

func nack(logger *lecho.Logger, delivery amqp.Delivery) {
	if delivery.Acknowledger == nil {
		return
	}
	if err := delivery.Nack(false, false); err != nil {
		captureErr(logger, err)
	}
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
