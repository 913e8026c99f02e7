package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/getAlby/lnledger/lib"
	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

func InitEcho(c *service.Config, logger *lecho.Logger) (e *echo.Echo) {
	// New Echo app
	e = echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("250K"))
	// set the default rate limit defining the overal max requests/second
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(c.DefaultRateLimit))))

	e.Logger = logger
	e.Use(middleware.RequestID())

	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	return e
}

func CreateLoggingMiddleware(logger *lecho.Logger) echo.MiddlewareFunc {
	return lecho.Middleware(lecho.Config{
		Logger: logger,
		Enricher: func(c echo.Context, logger zerolog.Context) zerolog.Context {
			return logger.Interface("UserID", c.Get("UserID"))
		},
	})
}

// CreateRateLimitMiddleware limits per user once authenticated and per IP
// before that.
func CreateRateLimitMiddleware(requestsPerSecond int, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(requestsPerSecond), Burst: burst},
		),
		IdentifierExtractor: rateLimitIdentifier,
	}

	return middleware.RateLimiterWithConfig(config)
}

func rateLimitIdentifier(ctx echo.Context) (string, error) {
	if userID, ok := ctx.Get("UserID").(int64); ok {
		return strconv.FormatInt(userID, 10), nil
	}
	return ctx.RealIP(), nil
}

// StartPrometheusEcho scrapes metrics from e and serves them on a separate
// echo instance, which is returned so it can be shut down.
func StartPrometheusEcho(logger *lecho.Logger, c *service.Config, e *echo.Echo) *echo.Echo {
	echoPrometheus := echo.New()
	echoPrometheus.HideBanner = true
	prom := prometheus.NewPrometheus("echo", nil)
	// Scrape metrics from Main Server
	e.Use(prom.HandlerFunc)
	// Setup metrics endpoint at another server
	prom.SetMetricsPath(echoPrometheus)
	echoPrometheus.Logger = logger
	go func() {
		echoPrometheus.Logger.Infof("Starting prometheus on port %d", c.PrometheusPort)
		if err := echoPrometheus.Start(fmt.Sprintf(":%d", c.PrometheusPort)); err != nil && err != http.ErrServerClosed {
			echoPrometheus.Logger.Error(err)
		}
	}()
	return echoPrometheus
}
