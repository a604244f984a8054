// Package darajatest runs an in-process imitation of the Daraja STK API.
package darajatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/Izzienjeri/shoply-sub000/random"
)

const (
	ConsumerKey    = "test-key"
	ConsumerSecret = "test-secret"
)

// Outcome is what a query for a checkout request answers. A zero Outcome
// means the customer has not answered yet.
type Outcome struct {
	ResultCode string
	ResultDesc string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	token       string
	tokenCalls  int
	pushes      []map[string]any
	queries     []string
	outcomes    map[string]Outcome
	known       map[string]bool
	rejectPush  string
	omitPushRef bool
}

func NewServer() *Server {
	s := &Server{
		token:    random.String(28),
		outcomes: make(map[string]Outcome),
		known:    make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", s.handleToken)
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", s.authorized(s.handlePush))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", s.authorized(s.handleQuery))

	s.Server = httptest.NewServer(mux)
	return s
}

// RejectPush makes the next pushes fail with the given error message.
func (s *Server) RejectPush(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectPush = msg
}

// OmitReference makes accepted pushes come back without a CheckoutRequestID.
func (s *Server) OmitReference() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitPushRef = true
}

// Resolve sets the answer to later queries for a checkout request.
func (s *Server) Resolve(checkoutRequestID string, o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[checkoutRequestID] = true
	s.outcomes[checkoutRequestID] = o
}

func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

// Pushes returns the decoded bodies of every push received.
func (s *Server) Pushes() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.pushes...)
}

func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	key, secret, ok := r.BasicAuth()
	if r.Method != http.MethodGet || !ok || key != ConsumerKey || secret != ConsumerSecret {
		writeError(w, http.StatusBadRequest, "400.008.01", "Invalid Authentication passed")
		return
	}

	s.mu.Lock()
	s.tokenCalls++
	tok := s.token
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"expires_in":   "3599",
	})
}

func (s *Server) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		tok := s.token
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+tok {
			writeError(w, http.StatusUnauthorized, "404.001.03", "Invalid Access Token")
			return
		}
		h(w, r)
	}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "400.002.02", "Bad Request - Invalid JSON")
		return
	}

	s.mu.Lock()
	s.pushes = append(s.pushes, body)
	reject, omit := s.rejectPush, s.omitPushRef
	s.mu.Unlock()

	if reject != "" {
		writeError(w, http.StatusBadRequest, "400.002.02", reject)
		return
	}

	ref := "ws_CO_" + random.String(20)
	if omit {
		ref = ""
	} else {
		s.mu.Lock()
		s.known[ref] = true
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"MerchantRequestID":   fmt.Sprintf("%s-%s", random.String(5), random.String(8)),
		"CheckoutRequestID":   ref,
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CheckoutRequestID string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "400.002.02", "Bad Request - Invalid JSON")
		return
	}

	s.mu.Lock()
	s.queries = append(s.queries, body.CheckoutRequestID)
	known := s.known[body.CheckoutRequestID]
	o, resolved := s.outcomes[body.CheckoutRequestID]
	s.mu.Unlock()

	switch {
	case !known || strings.TrimSpace(body.CheckoutRequestID) == "":
		writeError(w, http.StatusBadRequest, "400.002.02", "Bad Request - Invalid CheckoutRequestID")
	case !resolved || o.ResultCode == "":
		writeError(w, http.StatusInternalServerError, "500.001.1001", "The transaction is being processed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"ResponseCode":        "0",
			"ResponseDescription": "The service request has been accepted successsfully",
			"MerchantRequestID":   "",
			"CheckoutRequestID":   body.CheckoutRequestID,
			"ResultCode":          o.ResultCode,
			"ResultDesc":          o.ResultDesc,
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string, msg string) {
	writeJSON(w, status, map[string]any{
		"requestId":    random.String(12),
		"errorCode":    code,
		"errorMessage": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
