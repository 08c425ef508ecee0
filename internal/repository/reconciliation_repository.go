package repository

import (
	"database/sql"
	"errors"

	"cedeva-recon/internal/domain"
	"cedeva-recon/pkg/logger"
)

// ErrAlreadyReconciled is the optimistic-concurrency outcome: another
// request reconciled the transaction between our read and our write.
var ErrAlreadyReconciled = errors.New("transaction already reconciled")

// ReconciliationRepository applies a match. The three writes (mark the
// transaction reconciled, create the payment, update the booking
// balance) succeed or fail together.
type ReconciliationRepository interface {
	Apply(transaction *domain.CodaTransaction, booking *domain.UnpaidBooking) error
}

type reconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Apply(transaction *domain.CodaTransaction, booking *domain.UnpaidBooking) error {
	tx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer tx.Rollback()

	// Version-checked conditional update: at most one writer wins.
	result, err := tx.Exec(`
		UPDATE bank_transactions
		SET is_reconciled = TRUE, booking_id = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND NOT is_reconciled
	`, booking.ID, transaction.ID, transaction.Version)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to mark transaction reconciled")
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyReconciled
	}

	_, err = tx.Exec(`
		INSERT INTO payments (booking_id, bank_transaction_id, amount, payment_date, structured_communication)
		VALUES ($1, $2, $3, $4, $5)
	`, booking.ID, transaction.ID, transaction.Amount, transaction.TransactionDate, transaction.StructuredCommunication)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create payment")
		return err
	}

	newPaid := booking.PaidAmount.Add(transaction.Amount)
	newStatus := domain.PaymentStatusFor(newPaid, booking.TotalAmount)

	_, err = tx.Exec(`
		UPDATE bookings
		SET paid_amount = $1, payment_status = $2
		WHERE id = $3
	`, newPaid, newStatus, booking.ID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to update booking balance")
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit reconciliation")
		return err
	}

	transaction.IsReconciled = true
	transaction.BookingID = &booking.ID
	transaction.Version++

	return nil
}
