package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/getAlby/lnledger/common"
	"github.com/getAlby/lnledger/controllers"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/getAlby/lnledger/lib/tokens"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type wsHandler struct {
	echo    *echo.Echo
	handler echo.HandlerFunc
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c := h.echo.NewContext(r, w)
	if err := h.handler(c); err != nil {
		h.echo.HTTPErrorHandler(err, c)
	}
}

func (suite *ControllersTestSuite) TestNotificationStream() {
	suite.svc.Pubsub = service.NewPubsub()
	controller := controllers.NewNotificationStreamController(suite.svc).WithKeepalive(time.Hour)
	server := httptest.NewServer(&wsHandler{echo: suite.echo, handler: controller.StreamNotifications})
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
	suite.Error(err)
	suite.Require().NotNil(resp)
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.GenerateAccessToken(suite.svc.Config.JWTSecret, 3600, suite.user.ID)
	suite.Require().NoError(err)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	suite.Require().NoError(err)
	suite.Require().NoError(ws.SetReadDeadline(time.Now().Add(5 * time.Second)))

	event := controllers.StreamEvent{}
	suite.Require().NoError(ws.ReadJSON(&event))
	suite.Equal("keepalive", event.Type)
	suite.Equal(1, suite.svc.Pubsub.Subscribers(suite.user.ID))

	// reading the balance credits the settled invoice and notifies the stream
	suite.fund(500)
	suite.Equal(int64(500), suite.balance())
	event = controllers.StreamEvent{}
	suite.Require().NoError(ws.ReadJSON(&event))
	suite.Equal("notification", event.Type)
	suite.Require().NotNil(event.Notification)
	suite.Equal(common.NotificationInvoicePaid, event.Notification.Kind)
	suite.Equal(suite.user.ID, event.Notification.UserID)

	suite.Require().NoError(ws.Close())
	suite.Eventually(func() bool {
		return suite.svc.Pubsub.Subscribers(suite.user.ID) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func (suite *ControllersTestSuite) TestNotificationStreamDisabled() {
	controller := controllers.NewNotificationStreamController(suite.svc)
	rec := suite.do(controller.StreamNotifications, http.MethodGet, "/notifications/stream", nil, 0)
	suite.Equal(http.StatusNotFound, rec.Code)
}
