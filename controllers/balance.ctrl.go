package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// BalanceController : BalanceController struct
type BalanceController struct {
	svc *service.LndhubService
}

func NewBalanceController(svc *service.LndhubService) *BalanceController {
	return &BalanceController{svc: svc}
}

type BalanceResponse struct {
	BTC struct {
		AvailableBalance int64
	}
}

// Balance reconciles the user's invoices, payments and onchain receipts and
// returns the resulting balance.
func (controller *BalanceController) Balance(c echo.Context) error {
	userId := c.Get("UserID").(int64)
	balance, err := controller.svc.GetBalance(c.Request().Context(), userId)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	response := &BalanceResponse{}
	response.BTC.AvailableBalance = balance
	return c.JSON(http.StatusOK, response)
}
