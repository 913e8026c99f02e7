package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lnd"
	"github.com/labstack/echo/v4"
)

type HealthController struct {
	liveness *lnd.LivenessMonitor
}

func NewHealthController(liveness *lnd.LivenessMonitor) *HealthController {
	return &HealthController{liveness: liveness}
}

type HealthResponse struct {
	Result string `json:"result"`
	Node   string `json:"node"`
	Error  string `json:"error,omitempty"`
}

// Check is 200 while the node is reachable and synced, 503 otherwise.
func (controller *HealthController) Check(c echo.Context) error {
	if controller.liveness == nil {
		return c.JSON(http.StatusOK, &HealthResponse{Result: "OK", Node: "unknown"})
	}
	online, _, err := controller.liveness.Status()
	if !online {
		response := &HealthResponse{Result: "DEGRADED", Node: "offline"}
		if err != nil {
			response.Error = err.Error()
		}
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, &HealthResponse{Result: "OK", Node: "online"})
}
