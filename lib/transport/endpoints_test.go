package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getAlby/lnledger/controllers"
	"github.com/getAlby/lnledger/db/dbmock"
	"github.com/getAlby/lnledger/ledger"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lnd/lndmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ziflex/lecho/v3"
)

func newTestServer(t *testing.T, adminToken string) *echo.Echo {
	t.Helper()
	mlnd, err := lndmock.NewMockLND("1234567890abcdef", 10)
	require.NoError(t, err)
	logger := lecho.New(io.Discard)
	c := &service.Config{
		JWTSecret:             []byte("supersecret"),
		JWTAccessTokenExpiry:  3600,
		JWTRefreshTokenExpiry: 7200,
		AdminToken:            adminToken,
		AllowAccountCreation:  true,
		BitcoinNetwork:        "regtest",
		DefaultRateLimit:      1000,
		StrictRateLimit:       1000,
		BurstRateLimit:        1000,
		InvoiceExpiry:         3600,
	}
	svc := &service.LndhubService{
		Config:    c,
		Book:      ledger.NewBook(ledger.NewMemoryStore()),
		Records:   dbmock.NewRecordStore(),
		LndClient: mlnd,
		Logger:    logger,
		Notifier:  &service.LogNotifier{Logger: logger},
	}
	e := InitEcho(c, logger)
	RegisterEndpoints(svc, e, CreateLoggingMiddleware(logger))
	return e
}

func request(e *echo.Echo, method, target string, body interface{}, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestEndpointsRequireToken(t *testing.T) {
	e := newTestServer(t, "")

	rec := request(e, http.MethodGet, "/balance", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = request(e, http.MethodGet, "/balance", nil, echo.HeaderAuthorization, "Bearer nonsense")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/create", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := &controllers.CreateUserResponseBody{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(user))

	rec = request(e, http.MethodPost, "/auth", &controllers.AuthRequestBody{Login: user.Login, Password: user.Password})
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := &controllers.AuthResponseBody{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(tokens))

	bearer := "Bearer " + tokens.AccessToken
	rec = request(e, http.MethodGet, "/balance", nil, echo.HeaderAuthorization, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"BTC":{"AvailableBalance":0}}`, rec.Body.String())

	rec = request(e, http.MethodPost, "/addinvoice", &controllers.AddInvoiceRequestBody{Amount: 100}, echo.HeaderAuthorization, bearer)
	assert.Equal(t, http.StatusOK, rec.Code)

	// a refresh token is not an access token
	rec = request(e, http.MethodGet, "/balance", nil, echo.HeaderAuthorization, "Bearer "+tokens.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// admin routes only exist with an admin token
	rec = request(e, http.MethodPost, "/admin/payments/sweep", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
	e := newTestServer(t, "operator-token")

	// account creation needs the admin token as well
	rec := request(e, http.MethodPost, "/create", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(e, http.MethodPost, "/admin/payments/sweep", nil, echo.HeaderAuthorization, "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(e, http.MethodPost, "/admin/payments/sweep", nil, echo.HeaderAuthorization, "Bearer operator-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":0}`, rec.Body.String())
}

func TestRateLimitIdentifier(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())

	id, err := rateLimitIdentifier(c)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", id)

	c.Set("UserID", int64(42))
	id, err = rateLimitIdentifier(c)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}
