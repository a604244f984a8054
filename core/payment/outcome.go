package payment

import (
	"fmt"

	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/shopspring/decimal"
)

// FailureStatus maps a non-zero gateway result code to a terminal status.
func FailureStatus(code daraja.Code) Status {
	switch string(code) {
	case daraja.ResultInsufficientFunds, daraja.ResultCancelledByUser:
		return CancelledByUser
	case daraja.ResultUnreachable:
		return FailedTimeout
	}
	return FailedDaraja
}

// Interpret turns a gateway callback into a ledger outcome. When the second
// result is true the payment went through and the order still has to be
// materialized; the returned outcome then carries the receipt.
func Interpret(cb daraja.STKCallback, expected decimal.Decimal) (Outcome, bool) {
	desc := cb.ResultDesc
	if desc == "" {
		desc = "No result description from the gateway."
	}

	if cb.ResultCode != daraja.ResultOK {
		return Outcome{Status: FailureStatus(cb.ResultCode), Message: desc}, false
	}

	receipt, ok := cb.CallbackMetadata.Value("MpesaReceiptNumber")
	if !ok {
		return Outcome{
			Status:  FailedMissingReceipt,
			Message: "MpesaReceiptNumber missing from successful gateway callback.",
		}, false
	}

	raw, ok := cb.CallbackMetadata.Value("Amount")
	if !ok {
		raw = "0.00"
	}
	paid, err := decimal.NewFromString(raw)
	if err != nil {
		return Outcome{
			Status:  FailedProcessingError,
			Message: fmt.Sprintf("Invalid amount format from gateway: %s", raw),
			Receipt: receipt,
		}, false
	}

	if paid.LessThan(expected) {
		return Outcome{
			Status:  FailedUnderpaid,
			Message: fmt.Sprintf("Amount paid %s is less than the expected %s.", paid.StringFixed(2), expected.StringFixed(2)),
			Receipt: receipt,
		}, false
	}

	return Outcome{Status: Successful, Message: desc, Receipt: receipt}, true
}
