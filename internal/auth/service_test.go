package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	users map[string]*User
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)

	repo := &memoryRepo{users: map[string]*User{
		"admin@example.com":    {ID: 1, Email: "admin@example.com", PasswordHash: hash, IsActive: true},
		"disabled@example.com": {ID: 2, Email: "disabled@example.com", PasswordHash: hash, IsActive: false},
	}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewService(repo, NewTokenStore(client, "secret", time.Hour))
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc := newTestService(t)

	user, token, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.NotEmpty(t, token)

	userID, err := svc.ResolveToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.ID, userID)

	require.NoError(t, svc.Logout(context.Background(), token))
	_, err = svc.ResolveToken(context.Background(), token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLoginRejections(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Login(context.Background(), "admin@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "disabled@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
