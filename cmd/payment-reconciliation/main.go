package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getAlby/lnledger/db"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// script to reconcile pending payments between the node and the journal
func main() {
	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configrued log file
	logger := lib.Logger(c.LogFilePath)

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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	// Init new LND client
	lnCfg, err := lnd.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load lnd config %v", err)
	}
	lndClient, err := lnd.InitLNDClient(lnCfg, ctx)
	if err != nil {
		logger.Fatalf("Error initializing the LND connection: %v", err)
	}
	logger.Infof("Connected to LND: %s ", lndClient.IdentityPubkey)

	// no rabbitmq connection in this job: notifications fall back to the log
	notifier, err := service.NewNotifier(c, logger, nil)
	if err != nil {
		logger.Errorf("Falling back to log notifications: %v", err)
		notifier = &service.LogNotifier{Logger: logger}
	}

	svc := &service.LndhubService{
		Config:    c,
		Book:      ledger.NewBook(db.NewJournalStore(dbConn)),
		Records:   db.NewRecordStore(dbConn),
		LndClient: lndClient,
		Logger:    logger,
		Notifier:  notifier,
	}

	pending, err := svc.GetAllPendingPayments(ctx)
	if err != nil {
		logger.Fatalf("Failed to load pending payments: %v", err)
	}
	//for this job, we only look at payments older than a day to avoid current in-flight payments
	cutoff := time.Now().Add(-1 * 24 * time.Hour)
	old := pending[:0]
	for _, entry := range pending {
		if entry.CreatedAt.Before(cutoff) {
			old = append(old, entry)
		}
	}
	logger.Infof("Reconciling %d of %d pending payments", len(old), len(pending))

	err = svc.CheckPendingOutgoingPayments(ctx, old)
	if err != nil {
		sentry.CaptureException(err)
		svc.Logger.Error(err)
	}
}
