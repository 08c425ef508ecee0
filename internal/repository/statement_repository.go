package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"cedeva-recon/internal/domain"
	"cedeva-recon/pkg/logger"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

type StatementRepository interface {
	CreateImport(imp *domain.CodaImport, transactions []domain.CodaTransaction) error
	GetImportByBatchID(batchID string) (*domain.CodaImport, error)
	GetTransactionByID(id int) (*domain.CodaTransaction, error)
	GetUnreconciledCreditsByBatch(batchID string) ([]domain.CodaTransaction, error)
	GetUnreconciledCreditsByOrganisation(organisationID int) ([]domain.CodaTransaction, error)
}

type statementRepository struct {
	db *sql.DB
}

func NewStatementRepository(db *sql.DB) StatementRepository {
	return &statementRepository{db: db}
}

// CreateImport persists one statement as a new import batch. The batch
// and all its transactions are written in a single database transaction
// so a bad import leaves the database unchanged.
func (r *statementRepository) CreateImport(imp *domain.CodaImport, transactions []domain.CodaTransaction) error {
	tx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO coda_imports (
			batch_id, organisation_id, file_name, account_number,
			statement_date, old_balance, new_balance, transaction_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, imported_at
	`

	err = tx.QueryRow(
		query,
		imp.BatchID,
		imp.OrganisationID,
		imp.FileName,
		imp.AccountNumber,
		imp.StatementDate,
		imp.OldBalance,
		imp.NewBalance,
		imp.TransactionCount,
	).Scan(&imp.ID, &imp.ImportedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create CODA import")
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO bank_transactions (
			batch_id, organisation_id, transaction_date, value_date, amount,
			transaction_code, structured_communication, free_communication,
			counterparty_name, counterparty_account
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare statement")
		return err
	}
	defer stmt.Close()

	for _, transaction := range transactions {
		_, err = stmt.Exec(
			imp.BatchID,
			imp.OrganisationID,
			transaction.TransactionDate,
			transaction.ValueDate,
			transaction.Amount,
			transaction.TransactionCode,
			transaction.StructuredCommunication,
			transaction.FreeCommunication,
			transaction.CounterpartyName,
			transaction.CounterpartyAccount,
		)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to insert bank transaction")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit CODA import")
		return err
	}

	return nil
}

func (r *statementRepository) GetImportByBatchID(batchID string) (*domain.CodaImport, error) {
	query := `
		SELECT id, batch_id, organisation_id, file_name, account_number,
		       statement_date, old_balance, new_balance, transaction_count, imported_at
		FROM coda_imports
		WHERE batch_id = $1
	`

	var imp domain.CodaImport
	err := r.db.QueryRow(query, batchID).Scan(
		&imp.ID,
		&imp.BatchID,
		&imp.OrganisationID,
		&imp.FileName,
		&imp.AccountNumber,
		&imp.StatementDate,
		&imp.OldBalance,
		&imp.NewBalance,
		&imp.TransactionCount,
		&imp.ImportedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("CODA import %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get CODA import")
		return nil, err
	}

	return &imp, nil
}

const transactionColumns = `
	id, batch_id, organisation_id, transaction_date, value_date, amount,
	transaction_code, structured_communication, free_communication,
	counterparty_name, counterparty_account, is_reconciled, booking_id,
	version, created_at, updated_at
`

func (r *statementRepository) GetTransactionByID(id int) (*domain.CodaTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE id = $1`

	var t domain.CodaTransaction
	err := scanTransaction(r.db.QueryRow(query, id), &t)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bank transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get bank transaction")
		return nil, err
	}

	return &t, nil
}

func (r *statementRepository) GetUnreconciledCreditsByBatch(batchID string) ([]domain.CodaTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE batch_id = $1 AND NOT is_reconciled AND amount > 0
		ORDER BY transaction_date, id
	`
	return r.queryTransactions(query, batchID)
}

func (r *statementRepository) GetUnreconciledCreditsByOrganisation(organisationID int) ([]domain.CodaTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM bank_transactions
		WHERE organisation_id = $1 AND NOT is_reconciled AND amount > 0
		ORDER BY transaction_date DESC, id
	`
	return r.queryTransactions(query, organisationID)
}

func (r *statementRepository) queryTransactions(query string, arg interface{}) ([]domain.CodaTransaction, error) {
	rows, err := r.db.Query(query, arg)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query bank transactions")
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.CodaTransaction
	for rows.Next() {
		var t domain.CodaTransaction
		if err := scanTransaction(rows, &t); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan bank transaction")
			continue
		}
		transactions = append(transactions, t)
	}

	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner, t *domain.CodaTransaction) error {
	return row.Scan(
		&t.ID,
		&t.BatchID,
		&t.OrganisationID,
		&t.TransactionDate,
		&t.ValueDate,
		&t.Amount,
		&t.TransactionCode,
		&t.StructuredCommunication,
		&t.FreeCommunication,
		&t.CounterpartyName,
		&t.CounterpartyAccount,
		&t.IsReconciled,
		&t.BookingID,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}
