package controllers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// CheckPaymentController : CheckPaymentController struct
type CheckPaymentController struct {
	svc *service.LndhubService
}

func NewCheckPaymentController(svc *service.LndhubService) *CheckPaymentController {
	return &CheckPaymentController{svc: svc}
}

type CheckPaymentResponseBody struct {
	IsPaid bool `json:"paid"`
}

// CheckPayment reports whether one of the user's invoices has been credited.
func (controller *CheckPaymentController) CheckPayment(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	paid, err := controller.svc.InvoicePaid(c.Request().Context(), userID, c.Param("payment_hash"))
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, responses.BadArgumentsError)
	}
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &CheckPaymentResponseBody{IsPaid: paid})
}
