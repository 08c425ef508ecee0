package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CodaStatement is a fully parsed CODA file, before persistence.
// It owns its transaction list; reconciliation state lives on the
// persisted rows, never here.
type CodaStatement struct {
	FileName      string            `json:"file_name"`
	AccountNumber string            `json:"account_number"`
	StatementDate time.Time         `json:"statement_date"`
	OldBalance    decimal.Decimal   `json:"old_balance"`
	NewBalance    decimal.Decimal   `json:"new_balance"`
	Transactions  []CodaTransaction `json:"transactions"`
	Warnings      []ParseWarning    `json:"warnings,omitempty"`
}

// ParseWarning records a recoverable problem found during parsing,
// surfaced to the importing operator instead of aborting the file.
type ParseWarning struct {
	LineNumber int    `json:"line_number,omitempty"`
	Message    string `json:"message"`
}

// CodaTransaction is one movement from a CODA statement.
// Amount is signed: debit negative, credit positive. Only credit
// transactions are reconciliation candidates.
type CodaTransaction struct {
	ID                      int              `json:"id" db:"id"`
	BatchID                 string           `json:"batch_id" db:"batch_id"`
	OrganisationID          int              `json:"organisation_id" db:"organisation_id"`
	TransactionDate         time.Time        `json:"transaction_date" db:"transaction_date"`
	ValueDate               time.Time        `json:"value_date" db:"value_date"`
	Amount                  decimal.Decimal  `json:"amount" db:"amount"`
	TransactionCode         string           `json:"transaction_code" db:"transaction_code"`
	StructuredCommunication *string          `json:"structured_communication,omitempty" db:"structured_communication"`
	FreeCommunication       *string          `json:"free_communication,omitempty" db:"free_communication"`
	CounterpartyName        *string          `json:"counterparty_name,omitempty" db:"counterparty_name"`
	CounterpartyAccount     *string          `json:"counterparty_account,omitempty" db:"counterparty_account"`
	IsReconciled            bool             `json:"is_reconciled" db:"is_reconciled"`
	BookingID               *int             `json:"booking_id,omitempty" db:"booking_id"`
	Version                 int              `json:"-" db:"version"`
	CreatedAt               time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time        `json:"updated_at" db:"updated_at"`
}

// IsCredit reports whether money came into the account.
func (t *CodaTransaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// CodaImport is the persisted metadata of one imported statement file.
type CodaImport struct {
	ID               int             `json:"id" db:"id"`
	BatchID          string          `json:"batch_id" db:"batch_id"`
	OrganisationID   int             `json:"organisation_id" db:"organisation_id"`
	FileName         string          `json:"file_name" db:"file_name"`
	AccountNumber    string          `json:"account_number" db:"account_number"`
	StatementDate    time.Time       `json:"statement_date" db:"statement_date"`
	OldBalance       decimal.Decimal `json:"old_balance" db:"old_balance"`
	NewBalance       decimal.Decimal `json:"new_balance" db:"new_balance"`
	TransactionCount int             `json:"transaction_count" db:"transaction_count"`
	ImportedAt       time.Time       `json:"imported_at" db:"imported_at"`
}
