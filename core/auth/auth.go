// Package auth identifies the principal behind a request from the bearer
// ID token it carries.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/api/weberr"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier turns a raw token into the claims of its principal.
type Verifier interface {
	Verify(ctx context.Context, raw string) (claims.Claims, error)
}

// OIDCVerifier accepts ID tokens issued to one client of an OpenID provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

// Discover builds a verifier from the provider's discovery document.
func Discover(ctx context.Context, issuer string, clientID string) (*OIDCVerifier, error) {
	prov, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering provider %s: %w", issuer, err)
	}

	return NewOIDCVerifier(prov.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (claims.Claims, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return claims.Claims{}, err
	}
	if tok.Subject == "" {
		return claims.Claims{}, errors.New("token has no subject")
	}

	return claims.Claims{UserID: tok.Subject, Expiry: tok.Expiry}, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// claims of the ones that have it.
func Authenticate(v Verifier) web.Middleware {
	return func(handler web.Handler) web.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			raw, ok := bearer(r)
			if !ok {
				return weberr.NotAuthorized(errors.New("missing bearer token"))
			}

			clm, err := v.Verify(ctx, raw)
			if err != nil {
				return weberr.NotAuthorized(fmt.Errorf("verifying token: %w", err))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
	}
}

func bearer(r *http.Request) (string, bool) {
	scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
