package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"review_action/internal/app"
	"review_action/internal/domain"
)

func newAuth() (*app.AuthService, *memRepo, *memCache) {
	repo, cache := newMemRepo(), newMemCache()
	return app.NewAuthService(repo, cache, time.Hour).WithHashCost(bcrypt.MinCost), repo, cache
}

func TestAuth_RegisterLoginResolveLogout(t *testing.T) {
	auth, repo, cache := newAuth()
	ctx := context.Background()

	require.NoError(t, auth.Register(ctx, "coffee_shop_1", "demo1234"))
	stored, err := repo.GetTenant(ctx, "coffee_shop_1")
	require.NoError(t, err)
	assert.NotEqual(t, "demo1234", stored.PasswordHash)

	sess, err := auth.Login(ctx, "coffee_shop_1", "demo1234")
	require.NoError(t, err)
	_, err = uuid.Parse(sess.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, 5*time.Second)
	assert.Equal(t, 3600, cache.ttls["session:"+sess.Token])

	tenant, err := auth.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "coffee_shop_1", tenant)

	require.NoError(t, auth.Logout(ctx, sess.Token))
	_, err = auth.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_Rejections(t *testing.T) {
	auth, _, _ := newAuth()
	ctx := context.Background()
	require.NoError(t, auth.Register(ctx, "gym_1", "demo1234"))

	assert.ErrorIs(t, auth.Register(ctx, "gym_1", "another1"), domain.ErrTenantExists)
	assert.ErrorIs(t, auth.Register(ctx, "Gym One", "demo1234"), domain.ErrInvalidInput)
	assert.ErrorIs(t, auth.Register(ctx, "gym_2", "123"), domain.ErrInvalidInput)

	_, err := auth.Login(ctx, "gym_1", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = auth.Login(ctx, "nobody", "demo1234")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = auth.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = auth.Resolve(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuth_ExpiredSession(t *testing.T) {
	auth, _, cache := newAuth()
	ctx := context.Background()
	token := uuid.NewString()
	require.NoError(t, cache.Set(ctx, "session:"+token, domain.Session{
		Token: token, BusinessID: "cafe", ExpiresAt: time.Now().Add(-time.Minute),
	}, 60))

	_, err := auth.Resolve(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
