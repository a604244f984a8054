package daraja

import (
	"bytes"
	"encoding/json"
)

// Result codes reported by STK callbacks and queries.
const (
	ResultOK                = "0"
	ResultInsufficientFunds = "1"
	ResultCancelledByUser   = "1032"
	ResultUnreachable       = "1037"
)

// Error codes returned in the body of rejected API calls.
const (
	ErrCodeStillProcessing   = "500.001.1001"
	ErrCodeInvalidCheckoutID = "400.002.02"
)

// Code is a result code. The API sends them as numbers in callbacks and as
// strings in query responses.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Accepted reports whether the push was queued for the customer's handset.
func (r PushResponse) Accepted() bool {
	return r.ResponseCode == ResultOK
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type QueryResponse struct {
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Callback is the envelope posted to the CallBackURL of a push.
type Callback struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string    `json:"MerchantRequestID"`
	CheckoutRequestID string    `json:"CheckoutRequestID"`
	ResultCode        Code      `json:"ResultCode"`
	ResultDesc        string    `json:"ResultDesc"`
	CallbackMetadata  *Metadata `json:"CallbackMetadata,omitempty"`
}

type Metadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Value returns the textual form of the named metadata item. Numbers are
// returned exactly as sent.
func (m *Metadata) Value(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, it := range m.Item {
		if it.Name != name || len(it.Value) == 0 || string(it.Value) == "null" {
			continue
		}
		if it.Value[0] == '"' {
			var s string
			if err := json.Unmarshal(it.Value, &s); err != nil {
				return "", false
			}
			return s, s != ""
		}
		return string(it.Value), true
	}
	return "", false
}

type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
