package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/getAlby/lnledger/rabbitmq"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/ziflex/lecho/v3"
)

// Notifier delivers user facing events such as "invoice paid". Delivery is
// best effort: failures are logged by the caller and never roll back the
// ledger change that triggered them.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, payload interface{}) error
}

type Notification struct {
	ID        string      `json:"id"`
	UserID    int64       `json:"user_id"`
	Kind      string      `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
	Payload   interface{} `json:"payload"`
}

func NewNotification(userID int64, kind string, payload interface{}) Notification {
	return Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewNotifier builds the notifier selected by NOTIFIER.
func NewNotifier(c *Config, logger *lecho.Logger, rabbitmqClient rabbitmq.Client) (Notifier, error) {
	switch c.Notifier {
	case "", "log":
		return &LogNotifier{Logger: logger}, nil
	case "webhook":
		if c.WebhookUrl == "" {
			return nil, fmt.Errorf("NOTIFIER=webhook requires WEBHOOK_URL")
		}
		return NewWebhookNotifier(c.WebhookUrl), nil
	case "rabbitmq":
		if rabbitmqClient == nil {
			return nil, fmt.Errorf("NOTIFIER=rabbitmq requires RABBITMQ_URI")
		}
		return &RabbitMQNotifier{Client: rabbitmqClient}, nil
	case "kafka":
		brokers := c.KafkaBrokerList()
		if len(brokers) == 0 {
			return nil, fmt.Errorf("NOTIFIER=kafka requires KAFKA_BROKERS")
		}
		return NewKafkaNotifier(brokers, c.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", c.Notifier)
	}
}

type LogNotifier struct {
	Logger *lecho.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	n.Logger.Infof("Notification %s for user %d: %v", kind, userID, payload)
	return nil
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	body, err := json.Marshal(NewNotification(userID, kind, payload))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", n.url, resp.StatusCode)
	}
	return nil
}

// RabbitMQNotifier publishes to the notification exchange with the kind as
// routing key, e.g. invoice.incoming.settled.
type RabbitMQNotifier struct {
	Client rabbitmq.Client
}

func (n *RabbitMQNotifier) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	return n.Client.Publish(ctx, kind, NewNotification(userID, kind, payload))
}

type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Notify keys messages by user so one user's events stay ordered.
func (n *KafkaNotifier) Notify(ctx context.Context, userID int64, kind string, payload interface{}) error {
	data, err := json.Marshal(NewNotification(userID, kind, payload))
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(userID, 10)),
		Value: data,
	})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
