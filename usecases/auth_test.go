package usecases

import (
	"context"
	"testing"
	"time"

	"cacao-server/confs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubIssuer struct{}

func (stubIssuer) Generate(userID, email string) (string, time.Time, error) {
	return "token-" + userID, testNow.Add(time.Hour), nil
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewAuthUseCase(store, stubIssuer{}, zap.NewNop())

	s, err := uc.Register(ctx, RegisterInput{Name: "Ops", Email: "Ops@Example.com", Password: "fermenta1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", s.TokenType)
	assert.Equal(t, "ops@example.com", s.User.Email)
	assert.NotEqual(t, "fermenta1", s.User.PasswordHash)

	_, err = uc.Register(ctx, RegisterInput{Name: "Ops", Email: "ops@example.com", Password: "fermenta1"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = uc.Register(ctx, RegisterInput{Name: "Ops", Email: "not-an-email", Password: "short"})
	assert.Equal(t, KindValidation, KindOf(err))

	login, err := uc.Login(ctx, LoginInput{Email: "OPS@example.com", Password: "fermenta1"})
	require.NoError(t, err)
	assert.Equal(t, "token-"+s.User.ID, login.Token)

	_, err = uc.Login(ctx, LoginInput{Email: "ops@example.com", Password: "wrong-password"})
	assert.Equal(t, KindUnauthorized, KindOf(err))
	_, err = uc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "fermenta1"})
	assert.Equal(t, KindUnauthorized, KindOf(err))

	user, err := uc.User(ctx, s.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ops", user.Name)
}

func TestAuth_EnsureAdmin(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	uc := NewAuthUseCase(store, stubIssuer{}, zap.NewNop())
	cfg := confs.AdminConfig{Email: "admin@example.com", Password: "cacao-admin"}

	require.NoError(t, uc.EnsureAdmin(ctx, cfg))
	require.NoError(t, uc.EnsureAdmin(ctx, cfg), "idempotent")
	require.NoError(t, uc.EnsureAdmin(ctx, confs.AdminConfig{}), "disabled")

	_, err := uc.Login(ctx, LoginInput{Email: "admin@example.com", Password: "cacao-admin"})
	require.NoError(t, err)
}
