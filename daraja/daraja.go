// Package daraja is a client for the Safaricom Daraja M-Pesa Express (STK
// push) API.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"
)

// Timestamps are in East Africa Time, which has no daylight saving.
var eat = time.FixedZone("EAT", 3*60*60)

type Config struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	TransactionType string
	CallbackURL     string
	Timeout         time.Duration
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("daraja: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("daraja: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsStillProcessing reports whether a query was answered with "the
// transaction is being processed".
func IsStillProcessing(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == ErrCodeStillProcessing
}

// IsUnknownCheckout reports whether the API does not know the queried
// CheckoutRequestID.
func IsUnknownCheckout(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == ErrCodeInvalidCheckoutID
}

type PushRequest struct {
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
}

type reply struct {
	status int
	body   []byte
}

type Client struct {
	cfg  Config
	http *http.Client
	cb   *gobreaker.CircuitBreaker[reply]
	now  func() time.Time
	log  logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	base := &http.Client{Timeout: cfg.Timeout}
	c := &Client{
		cfg: cfg,
		now: time.Now,
		log: log,
	}

	ts := &tokenSource{
		ctx:     context.Background(),
		client:  base,
		url:     cfg.BaseURL + tokenPath,
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		now:     func() time.Time { return c.now() },
		timeout: cfg.Timeout,
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	c.http = oauth2.NewClient(ctx, ts)
	c.http.Timeout = cfg.Timeout

	c.cb = gobreaker.NewCircuitBreaker[reply](gobreaker.Settings{
		Name:        "daraja",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var ae *APIError
			return err == nil || (errors.As(err, &ae) && ae.Code != "")
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return c
}

func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + ts))
}

func (c *Client) timestamp() string {
	return c.now().In(eat).Format(timestampLayout)
}

// STKPush asks the customer's handset to authorize a payment. The amount is
// rounded up to whole shillings.
func (c *Client) STKPush(ctx context.Context, pr PushRequest) (PushResponse, error) {
	amount := pr.Amount.Ceil().IntPart()
	if amount < 1 {
		return PushResponse{}, fmt.Errorf("amount %s is below the minimum charge", pr.Amount)
	}

	ts := c.timestamp()
	body := pushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            amount,
		PartyA:            pr.Phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       pr.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  pr.AccountReference,
		TransactionDesc:   pr.Description,
	}

	var resp PushResponse
	if err := c.post(ctx, "stk_push", pushPath, body, &resp); err != nil {
		return PushResponse{}, err
	}
	return resp, nil
}

// STKQuery asks for the outcome of a push. While the customer has not
// answered the API replies with an error for which IsStillProcessing holds.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (QueryResponse, error) {
	ts := c.timestamp()
	body := queryRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp QueryResponse
	if err := c.post(ctx, "stk_query", queryPath, body, &resp); err != nil {
		return QueryResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, op string, path string, in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}

	start := time.Now()
	defer func() {
		metrics.GatewayDuration.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	}()

	rep, err := c.cb.Execute(func() (reply, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
		if err != nil {
			return reply{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return reply{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return reply{}, decodeError(resp)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return reply{}, err
		}
		return reply{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(rep.body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	ae := &APIError{Status: resp.StatusCode}

	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.ErrorCode != "" {
		ae.Code = eb.ErrorCode
		ae.Message = eb.ErrorMessage
		return ae
	}

	ae.Message = strings.TrimSpace(string(data))
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}
	return ae
}
