package service

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

type Config struct {
	DatabaseUri                      string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns                 int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns             int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime          int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN                        string  `envconfig:"SENTRY_DSN"`
	DatadogAgentUrl                  string  `envconfig:"DATADOG_AGENT_URL"`
	SentryTracesSampleRate           float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	LogFilePath                      string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret                        []byte  `envconfig:"JWT_SECRET" required:"true"`
	AdminToken                       string  `envconfig:"ADMIN_TOKEN"`
	JWTRefreshTokenExpiry            int     `envconfig:"JWT_REFRESH_EXPIRY" default:"604800"` // in seconds, default 7 days
	JWTAccessTokenExpiry             int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"`  // in seconds, default 2 days
	Port                             int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit                 int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit                  int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit                   int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus                 bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort                   int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	AllowAccountCreation             bool    `envconfig:"ALLOW_ACCOUNT_CREATION" default:"true"`
	Currency                         string  `envconfig:"CURRENCY" default:"BTC"`
	ReserveAccount                   string  `envconfig:"RESERVE_ACCOUNT" default:"Assets:Reserve:Lightning"`
	BitcoinNetwork                   string  `envconfig:"BITCOIN_NETWORK" default:"mainnet"`
	PaymentTimeout                   int     `envconfig:"PAYMENT_TIMEOUT" default:"5000"`          // in milliseconds
	PendingPaymentsInterval          int     `envconfig:"PENDING_PAYMENTS_INTERVAL" default:"300"` // in seconds
	InvoiceExpiry                    int64   `envconfig:"INVOICE_EXPIRY" default:"86400"`          // in seconds
	Notifier                         string  `envconfig:"NOTIFIER" default:"log"`                  // log, rabbitmq, webhook or kafka
	WebhookUrl                       string  `envconfig:"WEBHOOK_URL"`
	KafkaBrokers                     string  `envconfig:"KAFKA_BROKERS"` // comma separated
	KafkaTopic                       string  `envconfig:"KAFKA_TOPIC" default:"lnledger_notifications"`
	RabbitMQUri                      string  `envconfig:"RABBITMQ_URI"`
	RabbitMQLndInvoiceExchange       string  `envconfig:"RABBITMQ_LND_INVOICE_EXCHANGE" default:"lnd_invoice"`
	RabbitMQLndPaymentExchange       string  `envconfig:"RABBITMQ_LND_PAYMENT_EXCHANGE" default:"lnd_payment"`
	RabbitMQNotificationExchange     string  `envconfig:"RABBITMQ_NOTIFICATION_EXCHANGE" default:"lnledger_notification"`
	RabbitMQInvoiceConsumerQueueName string  `envconfig:"RABBITMQ_INVOICE_CONSUMER_QUEUE_NAME" default:"lnd_invoice_consumer"`
	RabbitMQPaymentConsumerQueueName string  `envconfig:"RABBITMQ_PAYMENT_CONSUMER_QUEUE_NAME" default:"lnd_payment_consumer"`
}

// NetworkParams maps BITCOIN_NETWORK to the chain parameters used to check
// invoices and addresses.
func (c *Config) NetworkParams() (*chaincfg.Params, error) {
	switch strings.ToLower(c.BitcoinNetwork) {
	case "", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", c.BitcoinNetwork)
	}
}

func (c *Config) KafkaBrokerList() []string {
	brokers := []string{}
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
