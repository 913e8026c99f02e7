package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.CreateUser(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, user.Login, 20)
	assert.Len(t, user.Password, 20)

	stored, err := env.svc.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, user.Password, stored.Password)

	id, err := env.svc.Authenticate(ctx, user.Login, user.Password)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = env.svc.Authenticate(ctx, user.Login, "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = env.svc.Authenticate(ctx, "nobody", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	access, refresh, err := env.svc.GenerateTokens(user.ID)
	require.NoError(t, err)
	_, _, err = env.svc.RefreshTokens(ctx, access)
	assert.ErrorIs(t, err, ErrBadCredentials)
	newAccess, _, err := env.svc.RefreshTokens(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
}
