package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// AddInvoiceController : Add invoice controller struct
type AddInvoiceController struct {
	svc *service.LndhubService
}

func NewAddInvoiceController(svc *service.LndhubService) *AddInvoiceController {
	return &AddInvoiceController{svc: svc}
}

type AddInvoiceRequestBody struct {
	Amount int64  `json:"amt" validate:"required,gt=0"`
	Memo   string `json:"memo"`
}

type AddInvoiceResponseBody struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	PayReq         string `json:"pay_req"`
}

// AddInvoice : Add invoice Controller
func (controller *AddInvoiceController) AddInvoice(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	return AddInvoice(c, controller.svc, userID)
}

// AddInvoice creates an invoice for userID from the request body. It is
// shared by the authenticated and the public invoice endpoints.
func AddInvoice(c echo.Context, svc *service.LndhubService, userID int64) error {
	var body AddInvoiceRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load addinvoice request body: user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid addinvoice request body user_id:%v error: %v", userID, err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, err := svc.AddInvoice(c.Request().Context(), userID, body.Amount, body.Memo)
	if err != nil {
		c.Logger().Errorf("Error creating invoice: user_id:%v error: %v", userID, err)
		return responses.ServiceError(c, err)
	}

	return c.JSON(http.StatusOK, &AddInvoiceResponseBody{
		RHash:          invoice.Hash,
		PaymentRequest: invoice.PaymentRequest,
		PayReq:         invoice.PaymentRequest,
	})
}
