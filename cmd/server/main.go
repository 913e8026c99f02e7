package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/getAlby/lnledger/db"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lib/transport"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getAlby/lnledger/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

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
	if _, err := c.NetworkParams(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging to STDOUT or a configrued log file
	logger := lib.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()
	group, err := db.Migrate(startupCtx, dbConn)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}
	if !group.IsZero() {
		logger.Infof("Migrated database to %s", group)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Init new LND client
	lnCfg, err := lnd.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading LN config: %v", err)
	}
	lndClient, err := lnd.InitLNDClient(lnCfg, startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing the LND connection: %v", err)
	}
	logger.Infof("Connected to LND: %s", lndClient.IdentityPubkey)

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// No rabbitmq features will be available in this case.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAMQPLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithLndInvoiceExchange(c.RabbitMQLndInvoiceExchange),
			rabbitmq.WithLndInvoiceConsumerQueueName(c.RabbitMQInvoiceConsumerQueueName),
			rabbitmq.WithLndPaymentExchange(c.RabbitMQLndPaymentExchange),
			rabbitmq.WithLndPaymentConsumerQueueName(c.RabbitMQPaymentConsumerQueueName),
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

	liveness := lnd.NewLivenessMonitor(lndClient, logger, time.Duration(lnCfg.LNDLivenessCheck)*time.Second)

	svc := &service.LndhubService{
		Config:         c,
		Book:           ledger.NewBook(db.NewJournalStore(dbConn)),
		Records:        db.NewRecordStore(dbConn),
		LndClient:      lndClient,
		Logger:         logger,
		Notifier:       notifier,
		Pubsub:         service.NewPubsub(),
		RabbitMQClient: rabbitmqClient,
		Liveness:       liveness,
	}

	//init echo server
	e := transport.InitEcho(c, logger)
	//if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("lnledger")))
	}
	transport.RegisterEndpoints(svc, e, transport.CreateLoggingMiddleware(logger))

	var backgroundWg sync.WaitGroup
	backGroundCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		liveness.StartLivenessLoop(backGroundCtx)
		svc.Logger.Info("Liveness routine done")
	}()

	// Subscribe to LND invoice updates in the background
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		if err := svc.StartInvoiceRoutine(backGroundCtx); err != nil {
			sentry.CaptureException(err)
			//we want to restart in case of an error here
			svc.Logger.Fatal(err)
		}
		svc.Logger.Info("Invoice routine done")
	}()

	// Subscribe to onchain transactions
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		if err := svc.StartTransactionRoutine(backGroundCtx); err != nil {
			sentry.CaptureException(err)
			svc.Logger.Fatal(err)
		}
		svc.Logger.Info("Transaction routine done")
	}()

	// Check the status of all pending outgoing payments
	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		if err := svc.StartPendingPaymentRoutine(backGroundCtx); err != nil {
			sentry.CaptureException(err)
			//in case of an error here no restart is necessary
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Pending payment check routines done")
	}()

	//Start Prometheus server if necessary
	var echoPrometheus *echo.Echo
	if c.EnablePrometheus {
		echoPrometheus = transport.StartPrometheusEcho(logger, c, e)
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Error(err)
	}
	if echoPrometheus != nil {
		if err := echoPrometheus.Shutdown(ctx); err != nil {
			e.Logger.Error(err)
		}
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("lnledger exiting gracefully. Goodbye.")
}
