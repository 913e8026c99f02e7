package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/controllers"
	"github.com/getAlby/lnledger/db/dbmock"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib"
	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lnd"
	"github.com/getAlby/lnledger/lnd/lndmock"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/ziflex/lecho/v3"
)

type ControllersTestSuite struct {
	suite.Suite
	svc      *service.LndhubService
	mlnd     *lndmock.MockLND
	external *lndmock.MockLND
	echo     *echo.Echo
	user     controllers.CreateUserResponseBody
}

func (suite *ControllersTestSuite) SetupTest() {
	mlnd, err := lndmock.NewMockLND("1234567890abcdef", 10)
	suite.Require().NoError(err)
	external, err := lndmock.NewMockLND("1234567890abcdefabcd", 0)
	suite.Require().NoError(err)
	logger := lecho.New(io.Discard)

	suite.mlnd = mlnd
	suite.external = external
	suite.svc = &service.LndhubService{
		Config: &service.Config{
			JWTSecret:             []byte("supersecret"),
			JWTAccessTokenExpiry:  3600,
			JWTRefreshTokenExpiry: 7200,
			AllowAccountCreation:  true,
			BitcoinNetwork:        "regtest",
			PaymentTimeout:        200,
			InvoiceExpiry:         3600,
		},
		Book:      ledger.NewBook(ledger.NewMemoryStore()),
		Records:   dbmock.NewRecordStore(),
		LndClient: mlnd,
		Logger:    logger,
		Notifier:  &service.LogNotifier{Logger: logger},
	}

	e := echo.New()
	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}
	e.Logger = logger
	suite.echo = e

	rec := suite.do(controllers.NewCreateUserController(suite.svc).CreateUser, http.MethodPost, "/create", nil, 0)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&suite.user))
}

// do runs handler on a request with body encoded as JSON. A non-zero userID
// is set the way the JWT middleware sets it.
func (suite *ControllersTestSuite) do(handler echo.HandlerFunc, method, target string, body interface{}, userID int64, params ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)
	if userID != 0 {
		c.Set("UserID", userID)
	}
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := handler(c); err != nil {
		suite.echo.HTTPErrorHandler(err, c)
	}
	return rec
}

func (suite *ControllersTestSuite) fund(amount int64) {
	invoice, err := suite.svc.AddInvoice(context.Background(), suite.user.ID, amount, "top up")
	suite.Require().NoError(err)
	suite.mlnd.SettleInvoice(invoice.Hash, amount)
}

func (suite *ControllersTestSuite) balance() int64 {
	rec := suite.do(controllers.NewBalanceController(suite.svc).Balance, http.MethodGet, "/balance", nil, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	response := &controllers.BalanceResponse{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(response))
	return response.BTC.AvailableBalance
}

func (suite *ControllersTestSuite) TestAuth() {
	controller := controllers.NewAuthController(suite.svc)
	rec := suite.do(controller.Auth, http.MethodPost, "/auth", &controllers.AuthRequestBody{
		Login:    suite.user.Login,
		Password: suite.user.Password,
	}, 0)
	suite.Equal(http.StatusOK, rec.Code)
	tokens := &controllers.AuthResponseBody{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(tokens))
	suite.NotEmpty(tokens.AccessToken)
	suite.NotEmpty(tokens.RefreshToken)

	// login again with only refresh token
	rec = suite.do(controller.Auth, http.MethodPost, "/auth", &controllers.AuthRequestBody{
		RefreshToken: tokens.RefreshToken,
	}, 0)
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.do(controller.Auth, http.MethodPost, "/auth", &controllers.AuthRequestBody{
		Login:    suite.user.Login,
		Password: "wrong",
	}, 0)
	suite.Equal(http.StatusUnauthorized, rec.Code)

	rec = suite.do(controller.Auth, http.MethodPost, "/auth", &controllers.AuthRequestBody{}, 0)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *ControllersTestSuite) TestCreateDisabled() {
	suite.svc.Config.AllowAccountCreation = false
	rec := suite.do(controllers.NewCreateUserController(suite.svc).CreateUser, http.MethodPost, "/create", nil, 0)
	suite.Equal(http.StatusForbidden, rec.Code)
}

func (suite *ControllersTestSuite) TestAddInvoiceAndCheckPayment() {
	rec := suite.do(controllers.NewAddInvoiceController(suite.svc).AddInvoice, http.MethodPost, "/addinvoice",
		&controllers.AddInvoiceRequestBody{Amount: 1000, Memo: "test"}, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	invoice := &controllers.AddInvoiceResponseBody{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(invoice))
	suite.NotEmpty(invoice.PaymentRequest)
	suite.Equal(invoice.PaymentRequest, invoice.PayReq)

	check := controllers.NewCheckPaymentController(suite.svc).CheckPayment
	rec = suite.do(check, http.MethodGet, "/checkpayment/"+invoice.RHash, nil, suite.user.ID, "payment_hash", invoice.RHash)
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"paid":false}`, rec.Body.String())

	suite.mlnd.SettleInvoice(invoice.RHash, 1000)
	rec = suite.do(check, http.MethodGet, "/checkpayment/"+invoice.RHash, nil, suite.user.ID, "payment_hash", invoice.RHash)
	suite.JSONEq(`{"paid":true}`, rec.Body.String())
	suite.Equal(int64(1000), suite.balance())

	rec = suite.do(check, http.MethodGet, "/checkpayment/unknown", nil, suite.user.ID, "payment_hash", "unknown")
	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *ControllersTestSuite) TestAddInvoiceValidation() {
	rec := suite.do(controllers.NewAddInvoiceController(suite.svc).AddInvoice, http.MethodPost, "/addinvoice",
		&controllers.AddInvoiceRequestBody{Amount: 0}, suite.user.ID)
	suite.Equal(http.StatusBadRequest, rec.Code)

	suite.mlnd.SetOffline(true)
	rec = suite.do(controllers.NewAddInvoiceController(suite.svc).AddInvoice, http.MethodPost, "/addinvoice",
		&controllers.AddInvoiceRequestBody{Amount: 10}, suite.user.ID)
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (suite *ControllersTestSuite) TestPublicInvoice() {
	invoiceController := controllers.NewInvoiceController(suite.svc)
	rec := suite.do(invoiceController.Invoice, http.MethodPost, "/invoice/"+suite.user.Login,
		&controllers.AddInvoiceRequestBody{Amount: 21}, 0, "user_login", suite.user.Login)
	suite.Equal(http.StatusOK, rec.Code)

	rec = suite.do(invoiceController.Invoice, http.MethodPost, "/invoice/nobody",
		&controllers.AddInvoiceRequestBody{Amount: 21}, 0, "user_login", "nobody")
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *ControllersTestSuite) TestPayInvoice() {
	suite.fund(2000)
	suite.Equal(int64(2000), suite.balance())
	payInvoice := controllers.NewPayInvoiceController(suite.svc).PayInvoice

	pr, hash, err := suite.external.ExternalInvoice(1000, "coffee")
	suite.Require().NoError(err)
	rec := suite.do(payInvoice, http.MethodPost, "/payinvoice", &controllers.PayInvoiceRequestBody{Invoice: pr}, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	response := &controllers.PayInvoiceResponseBody{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(response))
	suite.Equal(common.PaymentStatusSuccess, response.Status)
	suite.Equal(hash, response.PaymentHash)
	suite.Equal(int64(1000), response.Amount)
	suite.Equal(int64(10), response.Fee)
	suite.Equal(int64(990), suite.balance())

	// 990 left: 1000 + 10 fee is too much
	pr, _, err = suite.external.ExternalInvoice(1000, "too much")
	suite.Require().NoError(err)
	rec = suite.do(payInvoice, http.MethodPost, "/payinvoice", &controllers.PayInvoiceRequestBody{Invoice: pr}, suite.user.ID)
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Contains(rec.Body.String(), responses.NotEnoughBalanceError.Message)

	rec = suite.do(payInvoice, http.MethodPost, "/payinvoice", &controllers.PayInvoiceRequestBody{Invoice: "lnbcrt1garbage"}, suite.user.ID)
	suite.Equal(http.StatusBadRequest, rec.Code)

	rec = suite.do(payInvoice, http.MethodPost, "/payinvoice", &controllers.PayInvoiceRequestBody{}, suite.user.ID)
	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(int64(990), suite.balance())
}

func (suite *ControllersTestSuite) TestGetTXS() {
	suite.fund(500)
	rec := suite.do(controllers.NewGetTXSController(suite.svc).GetTXS, http.MethodGet, "/gettxs", nil, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	transactions := []service.Transaction{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&transactions))
	suite.Require().Len(transactions, 1)
	suite.Equal(int64(500), transactions[0].Amount)
	suite.Equal(common.TransactionTypePaidInvoice, transactions[0].Type)
}

func (suite *ControllersTestSuite) TestBalanceNodeOffline() {
	suite.fund(500)
	suite.mlnd.SetOffline(true)
	rec := suite.do(controllers.NewBalanceController(suite.svc).Balance, http.MethodGet, "/balance", nil, suite.user.ID)
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (suite *ControllersTestSuite) TestGetBtc() {
	getBtc := controllers.NewGetBtcController(suite.svc)
	rec := suite.do(getBtc.GetBtc, http.MethodGet, "/getbtc", nil, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	addresses := []controllers.GetBtcResponseBody{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&addresses))
	suite.Require().Len(addresses, 1)

	suite.mlnd.AddChainTransaction(lnd.ChainTransaction{
		ID:              "deposit",
		Tokens:          7000,
		IsConfirmed:     true,
		OutputAddresses: []string{addresses[0].Address},
	})
	suite.Equal(int64(7000), suite.balance())

	rec = suite.do(getBtc.QR, http.MethodGet, "/getbtc/qr", nil, suite.user.ID)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("image/png", rec.Header().Get(echo.HeaderContentType))
}

func (suite *ControllersTestSuite) TestGetInfoAndHealth() {
	rec := suite.do(controllers.NewGetInfoController(suite.svc).GetInfo, http.MethodGet, "/getinfo", nil, suite.user.ID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	info := &controllers.GetInfoResponseBody{}
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(info))
	suite.Equal(suite.mlnd.Pubkey(), info.IdentityPubkey)

	liveness := lnd.NewLivenessMonitor(suite.mlnd, suite.svc.Logger, 0)
	liveness.Check(context.Background())
	health := controllers.NewHealthController(liveness)
	rec = suite.do(health.Check, http.MethodGet, "/health", nil, 0)
	suite.Equal(http.StatusOK, rec.Code)

	suite.mlnd.SetOffline(true)
	liveness.Check(context.Background())
	rec = suite.do(health.Check, http.MethodGet, "/health", nil, 0)
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (suite *ControllersTestSuite) TestAdminReconcile() {
	suite.fund(800)
	admin := controllers.NewAdminController(suite.svc)
	userID := strconv.FormatInt(suite.user.ID, 10)
	rec := suite.do(admin.ReconcileUser, http.MethodPost, "/admin/reconcile/"+userID, nil, 0, "user_id", userID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"balance":800`)

	rec = suite.do(admin.ReconcileUser, http.MethodPost, "/admin/reconcile/abc", nil, 0, "user_id", "abc")
	suite.Equal(http.StatusBadRequest, rec.Code)

	rec = suite.do(admin.SweepPayments, http.MethodPost, "/admin/payments/sweep", nil, 0)
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"pending":0}`, rec.Body.String())
}

func TestControllersTestSuite(t *testing.T) {
	suite.Run(t, new(ControllersTestSuite))
}

func TestHealthWithoutMonitor(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	assert.NoError(t, controllers.NewHealthController(nil).Check(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
