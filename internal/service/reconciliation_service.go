package service

import (
	"errors"
	"fmt"

	"cedeva-recon/internal/domain"
	"cedeva-recon/internal/matcher"
	"cedeva-recon/internal/repository"
	"cedeva-recon/pkg/logger"
)

// ReasonAlreadyReconciled is the rejection reason for both the simple
// already-done case and the lost optimistic-concurrency race.
const ReasonAlreadyReconciled = "transaction is already reconciled"

// ManualReconcileResult is the displayable outcome of an operator
// action. A failed manual reconcile is an expected flow, not an error.
type ManualReconcileResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type ReconciliationService interface {
	AutoReconcile(batchID string) (int, error)
	GetSuggestions(organisationID int) ([]domain.ReconciliationSuggestion, error)
	GetUnreconciledTransactions(organisationID int) ([]domain.CodaTransaction, error)
	ManualReconcile(transactionID, bookingID int) (*ManualReconcileResult, error)
}

type reconciliationService struct {
	statements repository.StatementRepository
	bookings   repository.BookingRepository
	recon      repository.ReconciliationRepository
	scorer     *matcher.Scorer
}

func NewReconciliationService(
	statements repository.StatementRepository,
	bookings repository.BookingRepository,
	recon repository.ReconciliationRepository,
	scorer *matcher.Scorer,
) ReconciliationService {
	return &reconciliationService{
		statements: statements,
		bookings:   bookings,
		recon:      recon,
		scorer:     scorer,
	}
}

// AutoReconcile applies every unambiguous high-confidence match in the
// batch and returns how many transactions it reconciled. Idempotent: a
// second run finds no unreconciled transactions left to match.
func (s *reconciliationService) AutoReconcile(batchID string) (int, error) {
	imp, err := s.statements.GetImportByBatchID(batchID)
	if err != nil {
		return 0, err
	}

	transactions, err := s.statements.GetUnreconciledCreditsByBatch(batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to load batch transactions: %w", err)
	}

	bookings, err := s.bookings.GetUnpaidBookings(imp.OrganisationID)
	if err != nil {
		return 0, fmt.Errorf("failed to load unpaid bookings: %w", err)
	}

	reconciled := 0
	for i := range transactions {
		transaction := &transactions[i]

		booking, ok := s.scorer.AutoCandidate(transaction, bookings)
		if !ok {
			continue // zero or ambiguous candidates, leave for manual review
		}

		if err := s.recon.Apply(transaction, booking); err != nil {
			if errors.Is(err, repository.ErrAlreadyReconciled) {
				logger.GetLogger().WithField("transaction_id", transaction.ID).
					Warn("Transaction reconciled concurrently, skipping")
				continue
			}
			return reconciled, fmt.Errorf("failed to apply match for transaction %d: %w", transaction.ID, err)
		}

		// keep the in-memory booking balance current so later
		// transactions in the batch score against the real remainder
		booking.PaidAmount = booking.PaidAmount.Add(transaction.Amount)
		reconciled++
	}

	logger.GetLogger().WithField("batch_id", batchID).
		WithField("reconciled", reconciled).
		WithField("candidates", len(transactions)).
		Info("Auto-reconciliation completed")

	return reconciled, nil
}

// GetSuggestions scores every open credit transaction of the
// organisation against every unpaid booking and returns the ranked
// pairs above the suggestion floor.
func (s *reconciliationService) GetSuggestions(organisationID int) ([]domain.ReconciliationSuggestion, error) {
	transactions, err := s.statements.GetUnreconciledCreditsByOrganisation(organisationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	bookings, err := s.bookings.GetUnpaidBookings(organisationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unpaid bookings: %w", err)
	}

	suggestions := make([]domain.ReconciliationSuggestion, 0)
	for i := range transactions {
		suggestions = append(suggestions, s.scorer.Suggest(&transactions[i], bookings)...)
	}

	matcher.Rank(suggestions)
	return suggestions, nil
}

func (s *reconciliationService) GetUnreconciledTransactions(organisationID int) ([]domain.CodaTransaction, error) {
	return s.statements.GetUnreconciledCreditsByOrganisation(organisationID)
}

// ManualReconcile links one transaction to one booking on an operator's
// request. Validation failures come back as displayable outcomes; only
// infrastructure problems surface as errors.
func (s *reconciliationService) ManualReconcile(transactionID, bookingID int) (*ManualReconcileResult, error) {
	transaction, err := s.statements.GetTransactionByID(transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ManualReconcileResult{Reason: "transaction not found"}, nil
		}
		return nil, err
	}

	if transaction.IsReconciled {
		return &ManualReconcileResult{Reason: ReasonAlreadyReconciled}, nil
	}
	if !transaction.IsCredit() {
		return &ManualReconcileResult{Reason: "only credit transactions can be reconciled"}, nil
	}

	booking, err := s.bookings.GetUnpaidBookingByID(bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ManualReconcileResult{Reason: "booking not found or has no outstanding amount"}, nil
		}
		return nil, err
	}

	if booking.OrganisationID != transaction.OrganisationID {
		return &ManualReconcileResult{Reason: "transaction and booking belong to different organisations"}, nil
	}

	if err := s.recon.Apply(transaction, booking); err != nil {
		if errors.Is(err, repository.ErrAlreadyReconciled) {
			return &ManualReconcileResult{Reason: ReasonAlreadyReconciled}, nil
		}
		return nil, fmt.Errorf("failed to apply match: %w", err)
	}

	logger.GetLogger().WithField("transaction_id", transactionID).
		WithField("booking_id", bookingID).
		Info("Manually reconciled transaction")

	return &ManualReconcileResult{Success: true}, nil
}
