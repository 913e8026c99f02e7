package controllers

import (
	"errors"
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// AuthController : AuthController struct
type AuthController struct {
	svc *service.LndhubService
}

func NewAuthController(svc *service.LndhubService) *AuthController {
	return &AuthController{
		svc: svc,
	}
}

type AuthRequestBody struct {
	Login        string `json:"login"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}
type AuthResponseBody struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

// Auth exchanges login/password or a refresh token for a new token pair.
func (controller *AuthController) Auth(c echo.Context) error {
	var body AuthRequestBody

	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load auth user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	ctx := c.Request().Context()
	var accessToken, refreshToken string
	var err error
	switch {
	case body.Login != "" && body.Password != "":
		var userID int64
		userID, err = controller.svc.Authenticate(ctx, body.Login, body.Password)
		if err == nil {
			accessToken, refreshToken, err = controller.svc.GenerateTokens(userID)
		}
	case body.RefreshToken != "":
		accessToken, refreshToken, err = controller.svc.RefreshTokens(ctx, body.RefreshToken)
	default:
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if errors.Is(err, service.ErrBadCredentials) {
		return c.JSON(http.StatusUnauthorized, responses.BadAuthError)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &AuthResponseBody{
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
	})
}
