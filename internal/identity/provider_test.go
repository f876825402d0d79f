package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

const secret = "test-secret"

type mockUsers struct {
	GetFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockUsers) Get(ctx context.Context, userID string) (*model.User, error) {
	return m.GetFn(ctx, userID)
}

func token(t *testing.T, sub, name string) string {
	t.Helper()
	tok, err := NewAccessToken(secret, sub, name, "staff", time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestAuthenticate_NameResolution(t *testing.T) {
	users := &mockUsers{GetFn: func(_ context.Context, id string) (*model.User, error) {
		if id == "staff-1" {
			return &model.User{SpendingProfile: model.SpendingProfile{UserID: id, Name: "Jana Host"}}, nil
		}
		return nil, repository.ErrUserNotFound
	}}
	p := NewProvider(secret, users, nil)

	tests := []struct {
		name string
		sub  string
		tok  string
		want string
	}{
		{"profile name wins", "staff-1", "Token Name", "Jana Host"},
		{"token name", "staff-2", "Token Name", "Token Name"},
		{"caller id", "staff-3", "", "staff-3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actor, err := p.Authenticate(context.Background(), token(t, tc.sub, tc.tok))
			require.NoError(t, err)
			assert.Equal(t, tc.sub, actor.ID)
			assert.Equal(t, tc.want, actor.Name)
		})
	}
}

func TestAuthenticate_LookupFailureFallsBack(t *testing.T) {
	users := &mockUsers{GetFn: func(context.Context, string) (*model.User, error) {
		return nil, errors.New("store down")
	}}
	actor, err := NewProvider(secret, users, nil).Authenticate(context.Background(), token(t, "staff-1", "Token Name"))
	require.NoError(t, err)
	assert.Equal(t, "Token Name", actor.Name)
}

func TestAuthenticate_Rejects(t *testing.T) {
	p := NewProvider(secret, nil, nil)

	other, err := NewAccessToken("other-secret", "staff-1", "", "", time.Hour)
	require.NoError(t, err)
	expired, err := NewAccessToken(secret, "staff-1", "", "", -time.Minute)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other.Token,
		"expired":      expired.Token,
		"no subject":   noSub,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), raw)
			assert.ErrorIs(t, err, service.ErrUnauthorized)
		})
	}
}

func TestVerify_NumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 42, "role": "owner"}).SignedString([]byte(secret))
	require.NoError(t, err)

	c, err := NewProvider(secret, nil, nil).Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "owner", c.Role)
}
