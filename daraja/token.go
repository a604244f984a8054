package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// tokenEarly is how long before its reported expiry a token is replaced.
const tokenEarly = 60 * time.Second

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

// tokenSource fetches client-credential tokens with a GET and basic auth,
// which the generic oauth2 client credentials flow does not support.
type tokenSource struct {
	ctx     context.Context
	client  *http.Client
	url     string
	key     string
	secret  string
	now     func() time.Time
	timeout time.Duration
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(s.key, s.secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding access token: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("access token missing from response")
	}

	ttl := expiresIn(tr.ExpiresIn)
	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.now().Add(ttl - tokenEarly),
	}, nil
}

// expiresIn accepts both "3599" and 3599 and falls back to an hour.
func expiresIn(raw json.RawMessage) time.Duration {
	const fallback = 3599 * time.Second

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
