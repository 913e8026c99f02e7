package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// PayInvoiceController : Pay invoice controller struct
type PayInvoiceController struct {
	svc *service.LndhubService
}

func NewPayInvoiceController(svc *service.LndhubService) *PayInvoiceController {
	return &PayInvoiceController{svc: svc}
}

type PayInvoiceRequestBody struct {
	Invoice string `json:"invoice" validate:"required"`
}

type PayInvoiceResponseBody struct {
	Status      string `json:"status"`
	PaymentHash string `json:"payment_hash"`
	Amount      int64  `json:"num_satoshis"`
	Fee         int64  `json:"fee"`
	Description string `json:"description,omitempty"`
}

// PayInvoice pays a bolt11 invoice. A payment the node has not finished
// within the payment timeout is answered with status "pending"; the ledger
// entry stays pending until the node reports the outcome.
func (controller *PayInvoiceController) PayInvoice(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	reqBody := PayInvoiceRequestBody{}
	if err := c.Bind(&reqBody); err != nil {
		c.Logger().Errorf("Failed to load payinvoice request body: user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	if err := c.Validate(&reqBody); err != nil {
		c.Logger().Errorf("Invalid payinvoice request body user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, err := controller.svc.PayInvoice(c.Request().Context(), userID, reqBody.Invoice)
	if err != nil {
		c.Logger().Errorf("Payment declined user_id:%v error: %v", userID, err)
		return responses.ServiceError(c, err)
	}

	return c.JSON(http.StatusOK, &PayInvoiceResponseBody{
		Status:      result.Status,
		PaymentHash: result.Hash,
		Amount:      result.Amount,
		Fee:         result.Fee,
		Description: result.Description,
	})
}
