package controllers

import (
	"net/http"

	"github.com/getAlby/lnledger/lib/responses"
	"github.com/getAlby/lnledger/lib/service"
	"github.com/labstack/echo/v4"
)

// CreateUserController : Create user controller struct
type CreateUserController struct {
	svc *service.LndhubService
}

func NewCreateUserController(svc *service.LndhubService) *CreateUserController {
	return &CreateUserController{svc: svc}
}

type CreateUserRequestBody struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type CreateUserResponseBody struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// CreateUser : Create user Controller
func (controller *CreateUserController) CreateUser(c echo.Context) error {
	if !controller.svc.Config.AllowAccountCreation {
		return c.JSON(http.StatusForbidden, responses.AccountCreationDisabledError)
	}
	var body CreateUserRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create user request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	user, err := controller.svc.CreateUser(c.Request().Context(), body.Login, body.Password)
	if err != nil {
		c.Logger().Errorf("Failed to create user: %v", err)
		return err
	}

	return c.JSON(http.StatusOK, &CreateUserResponseBody{
		ID:       user.ID,
		Login:    user.Login,
		Password: user.Password,
	})
}
