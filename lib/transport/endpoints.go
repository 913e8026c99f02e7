package transport

import (
	"github.com/getAlby/lnledger/controllers"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lib/tokens"
	"github.com/labstack/echo/v4"
)

func RegisterEndpoints(svc *service.LndhubService, e *echo.Echo, logMw echo.MiddlewareFunc) {
	c := svc.Config
	// strict rate limit for requests for sending payments
	strictRateLimitMiddleware := CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	adminMw := tokens.AdminTokenMiddleware(c.AdminToken)

	secured := e.Group("", tokens.Middleware(c.JWTSecret), logMw)
	securedWithStrictRateLimit := e.Group("", tokens.Middleware(c.JWTSecret), strictRateLimitMiddleware, logMw)

	// Public endpoints for account creation and authentication
	e.POST("/auth", controllers.NewAuthController(svc).Auth, logMw)
	if c.AllowAccountCreation {
		e.POST("/create", controllers.NewCreateUserController(svc).CreateUser, strictRateLimitMiddleware, adminMw, logMw)
	}
	e.POST("/invoice/:user_login", controllers.NewInvoiceController(svc).Invoice, strictRateLimitMiddleware, logMw)
	e.GET("/health", controllers.NewHealthController(svc.Liveness).Check)
	if svc.Pubsub != nil {
		// websocket, authenticated with the token query parameter
		e.GET("/notifications/stream", controllers.NewNotificationStreamController(svc).StreamNotifications, logMw)
	}

	// Secured endpoints which require a Authorization token (JWT)
	secured.POST("/addinvoice", controllers.NewAddInvoiceController(svc).AddInvoice)
	securedWithStrictRateLimit.POST("/payinvoice", controllers.NewPayInvoiceController(svc).PayInvoice)
	secured.GET("/gettxs", controllers.NewGetTXSController(svc).GetTXS)
	secured.GET("/checkpayment/:payment_hash", controllers.NewCheckPaymentController(svc).CheckPayment)
	secured.GET("/balance", controllers.NewBalanceController(svc).Balance)
	secured.GET("/getinfo", controllers.NewGetInfoController(svc).GetInfo)
	getBtcController := controllers.NewGetBtcController(svc)
	securedWithStrictRateLimit.GET("/getbtc", getBtcController.GetBtc)
	securedWithStrictRateLimit.GET("/getbtc/qr", getBtcController.QR)

	// operator endpoints, only registered with an admin token configured
	if c.AdminToken != "" {
		admin := e.Group("/admin", adminMw, logMw)
		adminController := controllers.NewAdminController(svc)
		admin.POST("/reconcile/:user_id", adminController.ReconcileUser)
		admin.POST("/payments/sweep", adminController.SweepPayments)
	}
}
