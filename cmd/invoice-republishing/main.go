package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getAlby/lnledger/db"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Sends the settle notification again for invoices credited between
// START_DATE and END_DATE (RFC3339). DRY_RUN=true only logs them.
func main() {
	c := &service.Config{}
	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		fmt.Printf("Error loading environment variables: %v\n", err)
		os.Exit(1)
	}
	logger := lib.Logger(c.LogFilePath)
	startDate, endDate, err := loadStartAndEndDateFromEnv()
	if err != nil {
		logger.Fatalf("Could not load start and end date from env %v", err)
	}

	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{Dsn: c.SentryDSN}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAMQPLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}
		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithNotificationExchange(c.RabbitMQNotificationExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}
		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	notifier, err := service.NewNotifier(c, logger, rabbitmqClient)
	if err != nil {
		logger.Fatalf("Error initializing notifier: %v", err)
	}
	if closer, ok := notifier.(io.Closer); ok {
		defer closer.Close()
	}

	svc := &service.LndhubService{
		Config:         c,
		Book:           ledger.NewBook(db.NewJournalStore(dbConn)),
		Records:        db.NewRecordStore(dbConn),
		Logger:         logger,
		Notifier:       notifier,
		RabbitMQClient: rabbitmqClient,
	}

	dryRun := os.Getenv("DRY_RUN") == "true"
	found, failed, err := svc.RepublishInvoiceNotifications(context.Background(), startDate, endDate, dryRun)
	if err != nil {
		sentry.CaptureException(err)
		logger.Fatal(err)
	}
	logger.Infof("Published %d invoices, # errors %d", found, failed)
}

func loadStartAndEndDateFromEnv() (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, os.Getenv("START_DATE"))
	if err != nil {
		return
	}
	end, err = time.Parse(time.RFC3339, os.Getenv("END_DATE"))
	return
}
