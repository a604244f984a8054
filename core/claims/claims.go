package claims

import (
	"context"
	"errors"
	"time"
)

// Claims identify the authenticated principal for the lifetime of a request
// and of any checkout attempt started from it.
type Claims struct {
	UserID string
	Expiry time.Time
}

// Expired reports whether the session behind the claims has lapsed. Claims
// without an expiry never expire.
func (c Claims) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

func IsUser(ctx context.Context, id string) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.UserID == id
}
