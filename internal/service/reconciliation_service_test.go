package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cedeva-recon/internal/domain"
	"cedeva-recon/internal/matcher"
	"cedeva-recon/internal/repository"
)

// fakeStatementStore keeps imports and transactions in memory so the
// service is exercised against real state transitions, not canned
// returns.
type fakeStatementStore struct {
	imports      map[string]*domain.CodaImport
	transactions []*domain.CodaTransaction
}

func newFakeStatementStore() *fakeStatementStore {
	return &fakeStatementStore{imports: make(map[string]*domain.CodaImport)}
}

func (s *fakeStatementStore) CreateImport(imp *domain.CodaImport, transactions []domain.CodaTransaction) error {
	s.imports[imp.BatchID] = imp
	for i := range transactions {
		tx := transactions[i]
		tx.ID = len(s.transactions) + 1
		tx.BatchID = imp.BatchID
		tx.OrganisationID = imp.OrganisationID
		s.transactions = append(s.transactions, &tx)
	}
	return nil
}

func (s *fakeStatementStore) GetImportByBatchID(batchID string) (*domain.CodaImport, error) {
	imp, ok := s.imports[batchID]
	if !ok {
		return nil, fmt.Errorf("CODA import %s: %w", batchID, repository.ErrNotFound)
	}
	return imp, nil
}

func (s *fakeStatementStore) GetTransactionByID(id int) (*domain.CodaTransaction, error) {
	for _, tx := range s.transactions {
		if tx.ID == id {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("bank transaction %d: %w", id, repository.ErrNotFound)
}

func (s *fakeStatementStore) GetUnreconciledCreditsByBatch(batchID string) ([]domain.CodaTransaction, error) {
	var out []domain.CodaTransaction
	for _, tx := range s.transactions {
		if tx.BatchID == batchID && !tx.IsReconciled && tx.Amount.IsPositive() {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *fakeStatementStore) GetUnreconciledCreditsByOrganisation(organisationID int) ([]domain.CodaTransaction, error) {
	var out []domain.CodaTransaction
	for _, tx := range s.transactions {
		if tx.OrganisationID == organisationID && !tx.IsReconciled && tx.Amount.IsPositive() {
			out = append(out, *tx)
		}
	}
	return out, nil
}

type fakeBookingStore struct {
	bookings map[int]*domain.UnpaidBooking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[int]*domain.UnpaidBooking)}
}

func (s *fakeBookingStore) GetUnpaidBookings(organisationID int) ([]domain.UnpaidBooking, error) {
	var out []domain.UnpaidBooking
	for _, b := range s.bookings {
		if b.OrganisationID == organisationID && b.RemainingAmount().IsPositive() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) GetUnpaidBookingByID(id int) (*domain.UnpaidBooking, error) {
	b, ok := s.bookings[id]
	if !ok || !b.RemainingAmount().IsPositive() {
		return nil, fmt.Errorf("unpaid booking %d: %w", id, repository.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

// fakeReconciliationStore mirrors the version-checked apply: a second
// apply against the same transaction loses the race and fails.
type fakeReconciliationStore struct {
	statements *fakeStatementStore
	bookings   *fakeBookingStore
	payments   []domain.Payment
}

func (s *fakeReconciliationStore) Apply(transaction *domain.CodaTransaction, booking *domain.UnpaidBooking) error {
	var stored *domain.CodaTransaction
	for _, tx := range s.statements.transactions {
		if tx.ID == transaction.ID {
			stored = tx
			break
		}
	}
	if stored == nil || stored.IsReconciled || stored.Version != transaction.Version {
		return repository.ErrAlreadyReconciled
	}

	stored.IsReconciled = true
	id := booking.ID
	stored.BookingID = &id
	stored.Version++

	s.payments = append(s.payments, domain.Payment{
		BookingID:         booking.ID,
		BankTransactionID: transaction.ID,
		Amount:            transaction.Amount,
		PaymentDate:       transaction.TransactionDate,
	})

	persisted := s.bookings.bookings[booking.ID]
	persisted.PaidAmount = persisted.PaidAmount.Add(transaction.Amount)

	transaction.IsReconciled = true
	transaction.BookingID = &id
	transaction.Version++
	return nil
}

type fixture struct {
	statements *fakeStatementStore
	bookings   *fakeBookingStore
	recon      *fakeReconciliationStore
	service    ReconciliationService
}

func newFixture() *fixture {
	statements := newFakeStatementStore()
	bookings := newFakeBookingStore()
	recon := &fakeReconciliationStore{statements: statements, bookings: bookings}
	return &fixture{
		statements: statements,
		bookings:   bookings,
		recon:      recon,
		service:    NewReconciliationService(statements, bookings, recon, matcher.NewScorer(95, 30)),
	}
}

func (f *fixture) addBooking(id int, total string, comm string) {
	var commPtr *string
	if comm != "" {
		commPtr = &comm
	}
	f.bookings.bookings[id] = &domain.UnpaidBooking{
		ID:                      id,
		OrganisationID:          1,
		StructuredCommunication: commPtr,
		TotalAmount:             decimal.RequireFromString(total),
		PaidAmount:              decimal.Zero,
		BookingDate:             time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		ChildFirstName:          "Emma",
		ChildLastName:           "Janssens",
		ParentFirstName:         "Marie",
		ParentLastName:          "Janssens",
		ActivityName:            "Summer Camp 2024",
	}
}

func (f *fixture) addBatch(batchID string, transactions ...domain.CodaTransaction) {
	imp := &domain.CodaImport{
		BatchID:          batchID,
		OrganisationID:   1,
		FileName:         "statement.cod",
		TransactionCount: len(transactions),
	}
	if err := f.statements.CreateImport(imp, transactions); err != nil {
		panic(err)
	}
}

func movement(amount, comm string) domain.CodaTransaction {
	var commPtr *string
	if comm != "" {
		commPtr = &comm
	}
	return domain.CodaTransaction{
		TransactionDate:         time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		ValueDate:               time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:                  decimal.RequireFromString(amount),
		StructuredCommunication: commPtr,
	}
}

func TestAutoReconcile_AppliesUniqueHighConfidenceMatch(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "125.00", "000000012326")
	f.addBatch("batch-1", movement("125.00", "000000012326"))

	count, err := f.service.AutoReconcile("batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, f.recon.payments, 1)
	assert.Equal(t, 1, f.recon.payments[0].BookingID)
	assert.True(t, f.statements.transactions[0].IsReconciled)
	assert.True(t, f.bookings.bookings[1].PaidAmount.Equal(decimal.RequireFromString("125.00")))
}

func TestAutoReconcile_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "125.00", "000000012326")
	f.addBatch("batch-1", movement("125.00", "000000012326"))

	first, err := f.service.AutoReconcile("batch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := f.service.AutoReconcile("batch-1")
	require.NoError(t, err)
	assert.Equal(t, 0, second, "everything matchable was already reconciled")
	assert.Len(t, f.recon.payments, 1, "no duplicate payment rows")
}

func TestAutoReconcile_AmbiguousMatchLeftForOperator(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "125.00", "000000012326")
	f.addBooking(2, "125.00", "000000012326")
	f.addBatch("batch-1", movement("125.00", "000000012326"))

	count, err := f.service.AutoReconcile("batch-1")
	require.NoError(t, err)

	assert.Equal(t, 0, count)
	assert.False(t, f.statements.transactions[0].IsReconciled)
	assert.Empty(t, f.recon.payments)
}

func TestAutoReconcile_LowConfidenceSkipped(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "125.00", "")
	f.addBatch("batch-1", movement("125.00", "")) // exact amount alone scores 35

	count, err := f.service.AutoReconcile("batch-1")
	require.NoError(t, err)

	assert.Equal(t, 0, count)
}

func TestAutoReconcile_UnknownBatch(t *testing.T) {
	f := newFixture()

	_, err := f.service.AutoReconcile("no-such-batch")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetSuggestions_RankedAboveFloor(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "125.00", "000000012326")
	f.addBooking(2, "50.00", "")
	f.addBatch("batch-1",
		movement("125.00", "000000012326"), // 100 against booking 1
		movement("50.00", ""),              // 35 against booking 2
	)

	suggestions, err := f.service.GetSuggestions(1)
	require.NoError(t, err)

	require.Len(t, suggestions, 2)
	assert.Equal(t, 100, suggestions[0].ConfidenceScore)
	assert.Equal(t, 1, suggestions[0].BookingID)
	assert.Equal(t, 35, suggestions[1].ConfidenceScore)
	assert.Equal(t, 2, suggestions[1].BookingID)
}

func TestManualReconcile_Succeeds(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "200.00", "")
	f.addBatch("batch-1", movement("80.00", ""))

	result, err := f.service.ManualReconcile(1, 1)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, f.statements.transactions[0].IsReconciled)
	require.Len(t, f.recon.payments, 1)
	assert.True(t, f.recon.payments[0].Amount.Equal(decimal.RequireFromString("80.00")))
	assert.True(t, f.bookings.bookings[1].PaidAmount.Equal(decimal.RequireFromString("80.00")))
}

func TestManualReconcile_TransactionNotFound(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "200.00", "")

	result, err := f.service.ManualReconcile(42, 1)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "transaction not found", result.Reason)
}

func TestManualReconcile_AlreadyReconciled(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "200.00", "")
	f.addBooking(2, "200.00", "")
	f.addBatch("batch-1", movement("80.00", ""))

	first, err := f.service.ManualReconcile(1, 1)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.service.ManualReconcile(1, 2)
	require.NoError(t, err)

	assert.False(t, second.Success)
	assert.Equal(t, ReasonAlreadyReconciled, second.Reason)
	assert.Len(t, f.recon.payments, 1, "the losing attempt writes nothing")
}

func TestManualReconcile_DebitRejected(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "200.00", "")
	f.addBatch("batch-1", movement("-80.00", ""))

	result, err := f.service.ManualReconcile(1, 1)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "only credit transactions can be reconciled", result.Reason)
}

func TestManualReconcile_BookingNotFound(t *testing.T) {
	f := newFixture()
	f.addBatch("batch-1", movement("80.00", ""))

	result, err := f.service.ManualReconcile(1, 99)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "booking not found or has no outstanding amount", result.Reason)
}

func TestManualReconcile_OrganisationMismatch(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "200.00", "")
	f.bookings.bookings[1].OrganisationID = 2
	f.addBatch("batch-1", movement("80.00", ""))

	result, err := f.service.ManualReconcile(1, 1)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "transaction and booking belong to different organisations", result.Reason)
}

func TestGetUnreconciledTransactions_ExcludesReconciledAndDebits(t *testing.T) {
	f := newFixture()
	f.addBooking(1, "80.00", "")
	f.addBatch("batch-1",
		movement("80.00", ""),
		movement("-30.00", ""),
		movement("55.00", ""),
	)

	result, err := f.service.ManualReconcile(1, 1)
	require.NoError(t, err)
	require.True(t, result.Success)

	open, err := f.service.GetUnreconciledTransactions(1)
	require.NoError(t, err)

	require.Len(t, open, 1)
	assert.True(t, open[0].Amount.Equal(decimal.RequireFromString("55.00")))
}
