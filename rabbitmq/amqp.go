package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	defaultHeartbeat = 10 * time.Second
	defaultLocale    = "en_US"
)

var errReconnecting = errors.New("amqp: reconnect in progress")

type connEvent int

const (
	// the connection is back and consumers must resubscribe
	eventReconnected connEvent = iota
	// reconnecting was given up, consumers must stop
	eventClosed
)

type AMQPClient interface {
	Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

// listener is one Listen call waiting on connection events.
type listener struct {
	exchange   string
	routingKey string
	queueName  string
	events     chan connEvent
}

func (l *listener) String() string {
	return fmt.Sprintf("exchange:%s routing_key:%s queue:%s", l.exchange, l.routingKey, l.queueName)
}

// listenerSet hands connection events to every live consumer.
type listenerSet struct {
	mu        sync.Mutex
	listeners map[*listener]struct{}
}

func (s *listenerSet) add(l *listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = map[*listener]struct{}{}
	}
	s.listeners[l] = struct{}{}
}

func (s *listenerSet) remove(l *listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

func (s *listenerSet) broadcast(logger *lecho.Logger, event connEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for l := range s.listeners {
		select {
		case l.events <- event:
		default:
			logger.Warnf("amqp: listener %s has unread connection events, skipping", l)
		}
	}
	return len(s.listeners)
}

type defaultAMQPClient struct {
	uri string

	connMu sync.RWMutex
	conn   *amqp.Connection
	// Consumers and publishers get separate channels so flow control on
	// publishing never stalls consumption.
	consumeChannel  *amqp.Channel
	publishChannel  *amqp.Channel
	notifyCloseChan chan *amqp.Error

	listeners    listenerSet
	reconnecting atomic.Bool

	logger *lecho.Logger
}

type DialOption = func(client *defaultAMQPClient)

func WithAMQPLogger(logger *lecho.Logger) DialOption {
	return func(client *defaultAMQPClient) {
		client.logger = logger
	}
}

// DialAMQP connects to rabbitmq and keeps reconnecting in the background
// whenever the broker closes the connection.
func DialAMQP(uri string, options ...DialOption) (AMQPClient, error) {
	client := newAMQPClient(uri, options...)
	if err := client.connect(); err != nil {
		return nil, err
	}
	go client.reconnectionLoop()
	return client, nil
}

func newAMQPClient(uri string, options ...DialOption) *defaultAMQPClient {
	client := &defaultAMQPClient{
		uri: uri,
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// reconnectBackoff bounds both reconnecting and publishers waiting for it.
func reconnectBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	return backoff.WithContext(b, ctx)
}

func (c *defaultAMQPClient) connect() error {
	conn, err := amqp.DialConfig(c.uri, amqp.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
		Dial:      amqp.DefaultDial(3 * time.Second),
	})
	if err != nil {
		return err
	}
	consumeChannel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	publishChannel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	notifyCloseChan := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.connMu.Lock()
	c.conn = conn
	c.consumeChannel = consumeChannel
	c.publishChannel = publishChannel
	c.notifyCloseChan = notifyCloseChan
	c.connMu.Unlock()
	return nil
}

func (c *defaultAMQPClient) reconnectionLoop() {
	for {
		c.connMu.RLock()
		closed := c.notifyCloseChan
		c.connMu.RUnlock()

		amqpError, ok := <-closed
		if !ok || amqpError == nil {
			// closed by Close()
			return
		}
		c.logger.Errorf("amqp: connection lost: %v", amqpError)

		c.reconnecting.Store(true)
		err := backoff.RetryNotify(c.connect, reconnectBackoff(context.Background()), func(err error, wait time.Duration) {
			c.logger.Warnf("amqp: reconnect failed, retrying in %v: %v", wait, err)
		})
		if err != nil {
			c.logger.Errorf("amqp: giving up reconnecting: %v", err)
			n := c.listeners.broadcast(c.logger, eventClosed)
			c.logger.Errorf("amqp: stopped %d listeners", n)
			return
		}
		c.reconnecting.Store(false)

		n := c.listeners.broadcast(c.logger, eventReconnected)
		c.logger.Infof("amqp: reconnected, resubscribing %d listeners", n)
	}
}

func (c *defaultAMQPClient) Close() error {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *defaultAMQPClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	// short lived management channel
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

type ListenOptions struct {
	Durable    bool
	AutoDelete bool
	Internal   bool
	Wait       bool
	Exclusive  bool
	AutoAck    bool
}

type AMQPListenOptions = func(opts ListenOptions) ListenOptions

func WithDurable(durable bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Durable = durable
		return opts
	}
}

func WithAutoDelete(autoDelete bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoDelete = autoDelete
		return opts
	}
}

func WithExclusive(exclusive bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Exclusive = exclusive
		return opts
	}
}

func WithAutoAck(autoAck bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoAck = autoAck
		return opts
	}
}

func listenOptions(options ...AMQPListenOptions) ListenOptions {
	// durable, shared and manually acked unless told otherwise
	opts := ListenOptions{Durable: true}
	for _, opt := range options {
		opts = opt(opts)
	}
	return opts
}

// Listen consumes queueName bound to exchange. The returned channel survives
// reconnects and is closed once reconnecting is given up.
func (c *defaultAMQPClient) Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	opts := listenOptions(options...)
	deliveries, err := c.consume(exchange, routingKey, queueName, opts)
	if err != nil {
		return nil, err
	}

	l := &listener{
		exchange:   exchange,
		routingKey: routingKey,
		queueName:  queueName,
		events:     make(chan connEvent, 2),
	}
	c.listeners.add(l)
	clientChannel := make(chan amqp.Delivery)

	go func() {
		defer c.listeners.remove(l)
		for {
			select {
			case <-ctx.Done():
				return

			case event := <-l.events:
				switch event {
				case eventReconnected:
					d, err := c.consume(exchange, routingKey, queueName, opts)
					if err != nil {
						c.logger.Errorf("amqp: could not resubscribe %s: %v", l, err)
						close(clientChannel)
						return
					}
					c.logger.Infof("amqp: resubscribed %s", l)
					deliveries = d
				case eventClosed:
					c.logger.Warnf("amqp: closing %s", l)
					close(clientChannel)
					return
				}

			case delivery, ok := <-deliveries:
				if !ok {
					// a nil channel blocks until the next connection event
					c.logger.Warnf("amqp: deliveries stopped for %s, waiting for reconnect", l)
					deliveries = nil
					continue
				}
				select {
				case clientChannel <- delivery:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return clientChannel, nil
}

func (c *defaultAMQPClient) consume(exchange string, routingKey string, queueName string, opts ListenOptions) (<-chan amqp.Delivery, error) {
	c.connMu.RLock()
	ch := c.consumeChannel
	c.connMu.RUnlock()

	// the node publishes to topic exchanges, keyed by event kind
	err := ch.ExchangeDeclare(exchange, "topic", opts.Durable, opts.AutoDelete, opts.Internal, opts.Wait, nil)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	// A non-exclusive queue spreads deliveries over every lnledger instance.
	// Redeliveries are capped so a poison message cannot loop forever.
	queue, err := ch.QueueDeclare(queueName, opts.Durable, opts.AutoDelete, opts.Exclusive, opts.Wait, amqp.Table{
		"delivery-limit": 10,
	})
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	if err := ch.QueueBind(queue.Name, routingKey, exchange, opts.Wait, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s to %s: %w", queue.Name, exchange, err)
	}

	return ch.Consume(queue.Name, "", opts.AutoAck, opts.Exclusive, false, opts.Wait, nil)
}

// PublishWithContext waits out a reconnect in progress, bounded by ctx and the
// reconnect backoff.
func (c *defaultAMQPClient) PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error {
	if c.reconnecting.Load() {
		err := backoff.Retry(func() error {
			if c.reconnecting.Load() {
				return errReconnecting
			}
			return nil
		}, reconnectBackoff(ctx))
		if err != nil {
			return err
		}
	}

	c.connMu.RLock()
	ch := c.publishChannel
	c.connMu.RUnlock()
	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
