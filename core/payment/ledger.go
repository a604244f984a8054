package payment

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Record is the durable row of a payment transaction.
type Record struct {
	ID                string          `db:"payment_transaction_id"`
	Reference         string          `db:"checkout_request_id"`
	MerchantRequestID string          `db:"merchant_request_id"`
	Principal         string          `db:"user_id"`
	CartID            string          `db:"cart_id"`
	DeliveryOptionID  string          `db:"delivery_option_id"`
	ContactID         string          `db:"contact_id"`
	Amount            decimal.Decimal `db:"amount"`
	ChargedAmount     decimal.Decimal `db:"charged_amount"`
	Status            Status          `db:"status"`
	Message           string          `db:"message"`
	Receipt           *string         `db:"receipt"`
	OrderID           *string         `db:"order_id"`
	Items             Items           `db:"items"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r Record) Observation() Observation {
	o := Observation{Status: r.Status, Message: r.Message}
	if r.OrderID != nil {
		o.OrderID = *r.OrderID
	}
	return o
}

func (r Record) Event() Event {
	o := r.Observation()
	return Event{Reference: r.Reference, Status: o.Status, Message: o.Message, OrderID: o.OrderID}
}

// Item is a cart line as it was when the payment was requested.
type Item struct {
	LineID    string          `json:"lineId"`
	ArtworkID string          `json:"artworkId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Items is stored as a JSONB document.
type Items []Item

func (it Items) Value() (driver.Value, error) {
	if it == nil {
		it = Items{}
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (it *Items) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*it = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Items", src)
	}
	return json.Unmarshal(b, it)
}

// Outcome is a terminal write to the ledger.
type Outcome struct {
	Status  Status
	Message string
	Receipt string
	OrderID string
}

const recordColumns = `
	payment_transaction_id, checkout_request_id, merchant_request_id, user_id,
	cart_id, delivery_option_id, contact_id, amount, charged_amount, status,
	message, receipt, order_id, items, created_at, updated_at`

const openStatuses = `('initiated', 'pending_confirmation')`

func Create(ctx context.Context, db sqlx.ExtContext, r Record) error {
	const q = `
	INSERT INTO payment_transactions (` + recordColumns + `)
	VALUES (
		:payment_transaction_id, :checkout_request_id, :merchant_request_id, :user_id,
		:cart_id, :delivery_option_id, :contact_id, :amount, :charged_amount, :status,
		:message, :receipt, :order_id, :items, :created_at, :updated_at
	)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, r); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("reference %s already recorded: %w", r.Reference, err)
		}
		return err
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, reference string) (Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM payment_transactions WHERE checkout_request_id = $1`

	var r Record
	if err := sqlx.GetContext(ctx, db, &r, q, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, database.ErrDBNotFound
		}
		return Record{}, err
	}
	return r, nil
}

// FetchForUpdate is Fetch holding a row lock until the surrounding
// transaction ends.
func FetchForUpdate(ctx context.Context, db sqlx.QueryerContext, reference string) (Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM payment_transactions WHERE checkout_request_id = $1 FOR UPDATE`

	var r Record
	if err := sqlx.GetContext(ctx, db, &r, q, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, database.ErrDBNotFound
		}
		return Record{}, err
	}
	return r, nil
}

// Resolve writes a terminal outcome if the row is still open and reports
// whether it did.
func Resolve(ctx context.Context, db sqlx.ExecerContext, reference string, o Outcome, now time.Time) (bool, error) {
	if !o.Status.Terminal() {
		return false, fmt.Errorf("resolving %s with non-terminal status %s", reference, o.Status)
	}

	const q = `
	UPDATE payment_transactions SET
		status = $1,
		message = $2,
		receipt = COALESCE($3, receipt),
		order_id = COALESCE($4, order_id),
		updated_at = $5
	WHERE checkout_request_id = $6 AND status IN ` + openStatuses

	res, err := db.ExecContext(ctx, q, o.Status, o.Message, nullable(o.Receipt), nullable(o.OrderID), now, reference)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPending moves an open row to PendingConfirmation.
func MarkPending(ctx context.Context, db sqlx.ExecerContext, reference string, msg string, now time.Time) error {
	const q = `
	UPDATE payment_transactions SET
		status = $1,
		message = $2,
		updated_at = $3
	WHERE checkout_request_id = $4 AND status IN ` + openStatuses

	_, err := db.ExecContext(ctx, q, PendingConfirmation, msg, now, reference)
	return err
}

// ListStale returns open rows created before the given time, oldest first.
func ListStale(ctx context.Context, db sqlx.QueryerContext, before time.Time, limit int) ([]Record, error) {
	const q = `
	SELECT ` + recordColumns + `
	FROM payment_transactions
	WHERE status IN ` + openStatuses + ` AND created_at < $1
	ORDER BY created_at
	LIMIT $2`

	var rs []Record
	if err := sqlx.SelectContext(ctx, db, &rs, q, before, limit); err != nil {
		return nil, err
	}
	return rs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Store is the ledger backed by a database handle.
type Store struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Create(ctx context.Context, r Record) error {
	return Create(ctx, s.DB, r)
}

func (s *Store) Fetch(ctx context.Context, reference string) (Record, error) {
	return Fetch(ctx, s.DB, reference)
}

func (s *Store) Resolve(ctx context.Context, reference string, o Outcome) (bool, error) {
	return Resolve(ctx, s.DB, reference, o, s.Now())
}

func (s *Store) MarkPending(ctx context.Context, reference string, msg string) error {
	return MarkPending(ctx, s.DB, reference, msg, s.Now())
}

func (s *Store) ListStale(ctx context.Context, before time.Time, limit int) ([]Record, error) {
	return ListStale(ctx, s.DB, before, limit)
}
