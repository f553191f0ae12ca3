package proxy

import (
	"context"
	"errors"
	"strings"
)

// TokenSource yields the auth token attached to every proxy call. The two
// deployment modes (one site-wide token vs a token resolved per request) are
// both expressed through this interface.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed site-wide API token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.New("proxy: missing api token")
	}
	return string(t), nil
}

// TokenSourceFunc adapts a function to a TokenSource, for per-request
// resolution.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}
