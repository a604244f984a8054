package payment

import "fmt"

// Status is the state of a payment transaction. Initiated and
// PendingConfirmation are the only states a transaction can leave.
type Status string

const (
	Initiated           Status = "initiated"
	PendingConfirmation Status = "pending_confirmation"

	Successful            Status = "successful"
	FailedSTKInitiation   Status = "failed_stk_initiation"
	FailedSTKMissingID    Status = "failed_stk_missing_id"
	FailedUnderpaid       Status = "failed_underpaid"
	FailedProcessingError Status = "failed_processing_error"
	CancelledByUser       Status = "cancelled_by_user"
	FailedDaraja          Status = "failed_daraja"
	FailedTimeout         Status = "failed_timeout"
	FailedMissingReceipt  Status = "failed_missing_receipt"
	NotFound              Status = "not_found"
)

var statuses = map[Status]bool{
	Initiated:             false,
	PendingConfirmation:   false,
	Successful:            true,
	FailedSTKInitiation:   true,
	FailedSTKMissingID:    true,
	FailedUnderpaid:       true,
	FailedProcessingError: true,
	CancelledByUser:       true,
	FailedDaraja:          true,
	FailedTimeout:         true,
	FailedMissingReceipt:  true,
	NotFound:              true,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statuses[st]; !ok {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return st, nil
}

// Known reports whether s is one of the enumerated states.
func (s Status) Known() bool {
	_, ok := statuses[s]
	return ok
}

func (s Status) Terminal() bool {
	return statuses[s]
}

// Failed reports whether s is a terminal state other than Successful.
func (s Status) Failed() bool {
	return s.Terminal() && s != Successful
}

// OpenStatuses are the states stored rows can still move out of.
var OpenStatuses = []Status{Initiated, PendingConfirmation}
