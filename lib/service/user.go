package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/getAlby/lnledger/db/models"
	"github.com/getAlby/lnledger/lib/security"
	"github.com/getAlby/lnledger/lib/tokens"
	"github.com/labstack/gommon/random"
)

var ErrBadCredentials = errors.New("bad auth")

// CreateUser stores a new user. Login and password are generated when empty;
// the returned user carries the plain text password so it can be shown once.
func (svc *LndhubService) CreateUser(ctx context.Context, login string, password string) (*models.User, error) {
	user := &models.User{Login: login}

	// generate user login/password if not provided
	if login == "" {
		user.Login = random.String(20, alphaNumBytes)
	}
	if password == "" {
		password = random.String(20, alphaNumBytes)
	}

	// we only store the hashed password but return the initial plain text password in the HTTP response
	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user.Password = hashedPassword

	if err := svc.Records.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	// no account rows: the user's ledger account exists as soon as an entry touches it
	user.Password = password
	return user, nil
}

func (svc *LndhubService) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	return svc.Records.FindUser(ctx, userID)
}

func (svc *LndhubService) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return svc.Records.FindUserByLogin(ctx, login)
}

// Authenticate checks login and password and returns the user's id.
func (svc *LndhubService) Authenticate(ctx context.Context, login, password string) (int64, error) {
	user, err := svc.Records.FindUserByLogin(ctx, login)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBadCredentials
	}
	if err != nil {
		return 0, err
	}
	if !security.VerifyPassword(user.Password, password) {
		return 0, ErrBadCredentials
	}
	return user.ID, nil
}

// GenerateTokens returns an access and a refresh token for the user.
func (svc *LndhubService) GenerateTokens(userID int64) (accessToken string, refreshToken string, err error) {
	accessToken, err = tokens.GenerateAccessToken(svc.Config.JWTSecret, svc.Config.JWTAccessTokenExpiry, userID)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = tokens.GenerateRefreshToken(svc.Config.JWTSecret, svc.Config.JWTRefreshTokenExpiry, userID)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RefreshTokens exchanges a refresh token for a new token pair.
func (svc *LndhubService) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	userID, err := tokens.ParseToken(svc.Config.JWTSecret, refreshToken, true)
	if err != nil {
		return "", "", ErrBadCredentials
	}
	if _, err := svc.Records.FindUser(ctx, userID); err != nil {
		return "", "", ErrBadCredentials
	}
	return svc.GenerateTokens(userID)
}
