// Package identity authenticates callers from bearer tokens and resolves
// the display name recorded in table logs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/model"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// UserLookup reads a global user profile.
type UserLookup interface {
	Get(ctx context.Context, userID string) (*model.User, error)
}

// Provider verifies HS256 tokens signed with a shared secret.
type Provider struct {
	secret []byte
	users  UserLookup
	log    *zerolog.Logger
}

func NewProvider(secret string, users UserLookup, logger *zerolog.Logger) *Provider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Provider{secret: []byte(secret), users: users, log: logger}
}

// Claims is what a verified token says about the caller.
type Claims struct {
	Subject string
	Name    string
	Role    string
}

// Verify parses raw and returns its claims.
func (p *Provider) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	c := Claims{Subject: subject(mc["sub"])}
	if c.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	c.Name, _ = mc["name"].(string)
	c.Role, _ = mc["role"].(string)
	return c, nil
}

// subject accepts string subjects and the numeric ones older tokens carry.
func subject(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatInt(int64(s), 10)
	}
	return ""
}

// Authenticate verifies the bearer token and resolves the actor. The name is
// the caller's profile name, else the token's name claim, else the id.
func (p *Provider) Authenticate(ctx context.Context, raw string) (service.Actor, error) {
	c, err := p.Verify(raw)
	if err != nil {
		return service.Actor{}, service.Unauthorized("invalid or expired token")
	}
	return service.Actor{ID: c.Subject, Name: p.displayName(ctx, c), Role: c.Role}, nil
}

func (p *Provider) displayName(ctx context.Context, c Claims) string {
	if p.users != nil {
		u, err := p.users.Get(ctx, c.Subject)
		switch {
		case err == nil && strings.TrimSpace(u.Name) != "":
			return u.Name
		case err != nil && !errors.Is(err, repository.ErrUserNotFound):
			p.log.Warn().Err(err).Str("caller_id", c.Subject).Msg("caller profile lookup failed")
		}
	}
	if c.Name != "" {
		return c.Name
	}
	return c.Subject
}
