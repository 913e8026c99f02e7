package controllers

import (
	"net/http"
	"strconv"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// AdminController exposes the reconciliation passes to operators.
type AdminController struct {
	svc *service.LndhubService
}

func NewAdminController(svc *service.LndhubService) *AdminController {
	return &AdminController{svc: svc}
}

type ReconcileResponseBody struct {
	UserID  int64 `json:"user_id,omitempty"`
	Balance int64 `json:"balance"`
}

// ReconcileUser runs invoice, payment and onchain reconciliation for one user.
func (controller *AdminController) ReconcileUser(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if _, err := controller.svc.FindUser(c.Request().Context(), userID); err != nil {
		return c.JSON(http.StatusNotFound, responses.BadArgumentsError)
	}
	balance, err := controller.svc.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &ReconcileResponseBody{UserID: userID, Balance: balance})
}

type SweepResponseBody struct {
	Pending int `json:"pending"`
}

// SweepPayments checks every pending outgoing payment against the node and
// returns how many are still pending afterwards.
func (controller *AdminController) SweepPayments(c echo.Context) error {
	ctx := c.Request().Context()
	if err := controller.svc.CheckAllPendingOutgoingPayments(ctx); err != nil {
		return responses.ServiceError(c, err)
	}
	pending, err := controller.svc.GetAllPendingPayments(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &SweepResponseBody{Pending: len(pending)})
}
