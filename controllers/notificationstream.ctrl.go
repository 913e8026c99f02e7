package controllers

import (
	"net/http"
	"time"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lib/tokens"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamEventKeepalive    = "keepalive"
	streamEventNotification = "notification"
)

// NotificationStreamController : NotificationStreamController struct
type NotificationStreamController struct {
	svc       *service.LndhubService
	keepalive time.Duration
}

type StreamEvent struct {
	Type         string                `json:"type"`
	Notification *service.Notification `json:"notification,omitempty"`
}

func NewNotificationStreamController(svc *service.LndhubService) *NotificationStreamController {
	return &NotificationStreamController{svc: svc, keepalive: 30 * time.Second}
}

func (controller *NotificationStreamController) WithKeepalive(interval time.Duration) *NotificationStreamController {
	controller.keepalive = interval
	return controller
}

// StreamNotifications streams the user's notifications over a websocket.
// Browsers cannot set headers on websockets, so the access token comes in
// the token query parameter.
func (controller *NotificationStreamController) StreamNotifications(c echo.Context) error {
	if controller.svc.Pubsub == nil {
		return echo.ErrNotFound
	}
	userId, err := tokens.ParseToken(controller.svc.Config.JWTSecret, c.QueryParam("token"), false)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
	}

	upgrader := websocket.Upgrader{}
	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		controller.svc.Logger.Errorf("Websocket upgrade failed for user %d: %v", userId, err)
		return nil
	}
	defer ws.Close()

	subId, notifications := controller.svc.Pubsub.Subscribe(userId)
	defer controller.svc.Pubsub.Unsubscribe(subId, userId)

	// the client never sends anything, reading only detects the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(controller.keepalive)
	defer ticker.Stop()

	if err := ws.WriteJSON(&StreamEvent{Type: streamEventKeepalive}); err != nil {
		controller.svc.Logger.Error(err)
		return nil
	}
	for {
		select {
		case <-done:
			return nil
		case <-ticker.C:
			if err := ws.WriteJSON(&StreamEvent{Type: streamEventKeepalive}); err != nil {
				controller.svc.Logger.Error(err)
				return nil
			}
		case notification, ok := <-notifications:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(&StreamEvent{Type: streamEventNotification, Notification: &notification}); err != nil {
				controller.svc.Logger.Error(err)
				return nil
			}
		}
	}
}
