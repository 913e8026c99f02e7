package tokens

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type jwtCustomClaims struct {
	ID        int64 `json:"id"`
	IsRefresh bool  `json:"isRefresh"`
	jwt.StandardClaims
}

// GenerateAccessToken : Generate Access Token
func GenerateAccessToken(secret []byte, expiryInSeconds int, userID int64) (string, error) {
	return generateToken(secret, expiryInSeconds, userID, false)
}

// GenerateRefreshToken : Generate Refresh Token
func GenerateRefreshToken(secret []byte, expiryInSeconds int, userID int64) (string, error) {
	return generateToken(secret, expiryInSeconds, userID, true)
}

func generateToken(secret []byte, expiryInSeconds int, userID int64, isRefresh bool) (string, error) {
	claims := &jwtCustomClaims{
		ID:        userID,
		IsRefresh: isRefresh,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Second * time.Duration(expiryInSeconds)).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken returns the user id of a valid token of the requested kind.
func ParseToken(secret []byte, token string, mustBeRefresh bool) (int64, error) {
	claims := &jwtCustomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	if claims.IsRefresh != mustBeRefresh {
		return 0, errors.New("wrong token type")
	}
	return claims.ID, nil
}

// Middleware accepts "Authorization: Bearer <access token>" and sets UserID.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			userID, err := ParseToken(secret, key, false)
			if err != nil {
				return false, nil
			}
			c.Set("UserID", userID)
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
				"error":   true,
				"code":    1,
				"message": "bad auth",
			})
		},
	})
}
