package responses

import (
	"errors"
	"net/http"

	"github.com/getAlby/lnledger/lib/service"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var InvalidInvoiceError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "invalid invoice",
	HttpStatusCode: 400,
}

var NoRouteError = ErrorResponse{
	Error:          true,
	Code:           10,
	Message:        "no route found. Does the receiver have enough inbound capacity?",
	HttpStatusCode: 400,
}

var NotEnoughBalanceError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "not enough balance. Make sure you have at least 1% reserved for potential fees",
	HttpStatusCode: 400,
}

var PaymentFailedError = ErrorResponse{
	Error:          true,
	Code:           10,
	Message:        "payment failed",
	HttpStatusCode: 400,
}

var NodeUnavailableError = ErrorResponse{
	Error:          true,
	Code:           7,
	Message:        "Lightning node unavailable. Please try again later",
	HttpStatusCode: 503,
}

var AccountCreationDisabledError = ErrorResponse{
	Error:          true,
	Code:           9,
	Message:        "account creation is disabled",
	HttpStatusCode: 403,
}

// FromServiceError maps an error returned by the service to the response
// the client gets. Anything unknown is a general server error.
func FromServiceError(err error) ErrorResponse {
	var (
		invalid      *service.InvalidInvoiceError
		noRoute      *service.NoRouteError
		insufficient *service.InsufficientBalanceError
		failed       *service.PaymentFailedError
		upstream     *service.UpstreamUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		return withMessage(InvalidInvoiceError, invalid.Error())
	case errors.As(err, &noRoute):
		return NoRouteError
	case errors.As(err, &insufficient):
		return NotEnoughBalanceError
	case errors.As(err, &failed):
		return withMessage(PaymentFailedError, "payment failed: "+failed.Reason)
	case errors.As(err, &upstream):
		return NodeUnavailableError
	default:
		return GeneralServerError
	}
}

func withMessage(response ErrorResponse, message string) ErrorResponse {
	response.Message = message
	return response
}

// ServiceError writes the mapped response. Internal errors are returned to
// echo instead so HTTPErrorHandler logs them and reports them to Sentry.
func ServiceError(c echo.Context, err error) error {
	response := FromServiceError(err)
	if response.HttpStatusCode >= http.StatusInternalServerError && response.HttpStatusCode != http.StatusServiceUnavailable {
		return err
	}
	if response.HttpStatusCode == http.StatusServiceUnavailable {
		c.Logger().Errorf("Lightning node unavailable: user_id:%v error: %v", c.Get("UserID"), err)
	}
	return c.JSON(response.HttpStatusCode, response)
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("UserID", c.Get("UserID"))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
		return
	}
	var recon *service.InternalReconciliationError
	if errors.As(err, &recon) {
		c.JSON(http.StatusInternalServerError, withMessage(GeneralServerError, "reconciliation failed, support has been notified"))
		return
	}
	c.JSON(http.StatusInternalServerError, GeneralServerError)
}

// isErrAllowedForSentry filters out expected auth failures.
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	if message, ok := he.Message.(echo.Map); ok {
		if code, ok := message["code"].(int); ok && code == BadAuthError.Code {
			return false
		}
	}
	return true
}
