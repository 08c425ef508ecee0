package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks how much of a booking has been settled
type PaymentStatus string

const (
	NotPaid       PaymentStatus = "NOT_PAID"
	PartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	Paid          PaymentStatus = "PAID"
	Overpaid      PaymentStatus = "OVERPAID"
)

// PaymentStatusFor derives the status from the paid vs total amounts.
func PaymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThan(total):
		return Overpaid
	case paid.GreaterThanOrEqual(total):
		return Paid
	case paid.IsPositive():
		return PartiallyPaid
	default:
		return NotPaid
	}
}

// UnpaidBooking is a read-only view of a booking that still owes money.
// StructuredCommunication holds the expected payment reference as bare digits.
type UnpaidBooking struct {
	ID                      int             `json:"id" db:"id"`
	OrganisationID          int             `json:"organisation_id" db:"organisation_id"`
	StructuredCommunication *string         `json:"structured_communication,omitempty" db:"structured_communication"`
	TotalAmount             decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaidAmount              decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	BookingDate             time.Time       `json:"booking_date" db:"booking_date"`
	ChildFirstName          string          `json:"child_first_name" db:"child_first_name"`
	ChildLastName           string          `json:"child_last_name" db:"child_last_name"`
	ParentFirstName         string          `json:"parent_first_name" db:"parent_first_name"`
	ParentLastName          string          `json:"parent_last_name" db:"parent_last_name"`
	ActivityName            string          `json:"activity_name" db:"activity_name"`
}

// RemainingAmount is total minus paid; always positive for an unpaid booking.
func (b *UnpaidBooking) RemainingAmount() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount)
}

// ChildName returns the child's display name.
func (b *UnpaidBooking) ChildName() string {
	return b.ChildFirstName + " " + b.ChildLastName
}

// ParentName returns the parent's display name.
func (b *UnpaidBooking) ParentName() string {
	return b.ParentFirstName + " " + b.ParentLastName
}

// Payment is the record created when a bank transaction settles a booking.
type Payment struct {
	ID                      int             `json:"id" db:"id"`
	BookingID               int             `json:"booking_id" db:"booking_id"`
	BankTransactionID       int             `json:"bank_transaction_id" db:"bank_transaction_id"`
	Amount                  decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate             time.Time       `json:"payment_date" db:"payment_date"`
	StructuredCommunication *string         `json:"structured_communication,omitempty" db:"structured_communication"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
}

// ReconciliationSuggestion pairs one unreconciled transaction with one
// unpaid booking. Ephemeral: computed on demand, never persisted.
type ReconciliationSuggestion struct {
	TransactionID     int             `json:"transaction_id"`
	BookingID         int             `json:"booking_id"`
	ConfidenceScore   int             `json:"confidence_score"`
	MatchReasons      []string        `json:"match_reasons"`
	TransactionDate   time.Time       `json:"transaction_date"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	PaymentReference  string          `json:"payment_reference,omitempty"`
	CounterpartyName  string          `json:"counterparty_name,omitempty"`
	ChildName         string          `json:"child_name"`
	ParentName        string          `json:"parent_name"`
	ActivityName      string          `json:"activity_name"`
	BookingDate       time.Time       `json:"booking_date"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
}
