package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lnd"
	"github.com/labstack/echo/v4"
)

// GetInfoController : GetInfoController struct
type GetInfoController struct {
	svc *service.LndhubService
}

func NewGetInfoController(svc *service.LndhubService) *GetInfoController {
	return &GetInfoController{svc: svc}
}

type GetInfoResponseBody struct {
	IdentityPubkey   string `json:"identity_pubkey"`
	Alias            string `json:"alias"`
	BlockHeight      uint32 `json:"block_height"`
	SyncedToChain    bool   `json:"synced_to_chain"`
	ActiveChannels   uint32 `json:"num_active_channels"`
	InactiveChannels uint32 `json:"num_inactive_channels"`
}

// GetInfo answers from the liveness monitor when one runs, so the node is
// not hit on every request.
func (controller *GetInfoController) GetInfo(c echo.Context) error {
	var info *lnd.NodeInfo
	if controller.svc.Liveness != nil {
		_, info, _ = controller.svc.Liveness.Status()
	}
	if info == nil {
		var err error
		info, err = controller.svc.LndClient.GetInfo(c.Request().Context())
		if err != nil {
			c.Logger().Errorf("Failed to get node info: %v", err)
			return c.JSON(http.StatusServiceUnavailable, responses.NodeUnavailableError)
		}
	}
	return c.JSON(http.StatusOK, &GetInfoResponseBody{
		IdentityPubkey:   info.IdentityPubkey,
		Alias:            info.Alias,
		BlockHeight:      info.BlockHeight,
		SyncedToChain:    info.SyncedToChain,
		ActiveChannels:   info.ActiveChannels,
		InactiveChannels: info.InactiveChannels,
	})
}
