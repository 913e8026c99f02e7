package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
	"github.com/skip2/go-qrcode"
)

// GetBtcController : GetBtcController struct
type GetBtcController struct {
	svc *service.LndhubService
}

func NewGetBtcController(svc *service.LndhubService) *GetBtcController {
	return &GetBtcController{svc: svc}
}

type GetBtcResponseBody struct {
	Address string `json:"address"`
}

// GetBtc hands out a new onchain deposit address for the user.
func (controller *GetBtcController) GetBtc(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	address, err := controller.svc.GetOnChainAddress(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("Failed to get onchain address: user_id:%v error: %v", userID, err)
		return responses.ServiceError(c, err)
	}
	// clients expect a list of addresses
	return c.JSON(http.StatusOK, []GetBtcResponseBody{{Address: address}})
}

// QR renders a new deposit address as a bitcoin: URI QR code.
func (controller *GetBtcController) QR(c echo.Context) error {
	userID := c.Get("UserID").(int64)
	address, err := controller.svc.GetOnChainAddress(c.Request().Context(), userID)
	if err != nil {
		return responses.ServiceError(c, err)
	}
	png, err := qrcode.Encode("bitcoin:"+address, qrcode.Medium, 256)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
