package repository

import (
	"database/sql"
	"fmt"

	"cedeva-recon/internal/domain"
	"cedeva-recon/internal/structcomm"
	"cedeva-recon/pkg/logger"
)

// BookingRepository is the read-only view into the booking subsystem.
// The bookings table is fed by the CRUD application; this service only
// reads it and adjusts paid amounts through ReconciliationRepository.
type BookingRepository interface {
	GetUnpaidBookings(organisationID int) ([]domain.UnpaidBooking, error)
	GetUnpaidBookingByID(id int) (*domain.UnpaidBooking, error)
}

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) BookingRepository {
	return &bookingRepository{db: db}
}

const bookingColumns = `
	id, organisation_id, structured_communication, total_amount, paid_amount,
	booking_date, child_first_name, child_last_name,
	parent_first_name, parent_last_name, activity_name
`

func (r *bookingRepository) GetUnpaidBookings(organisationID int) ([]domain.UnpaidBooking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE organisation_id = $1
		  AND is_confirmed
		  AND payment_status NOT IN ('PAID', 'OVERPAID')
		  AND total_amount > paid_amount
		ORDER BY booking_date DESC, id
	`

	rows, err := r.db.Query(query, organisationID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query unpaid bookings")
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.UnpaidBooking
	for rows.Next() {
		var b domain.UnpaidBooking
		if err := scanBooking(rows, &b); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan booking")
			continue
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) GetUnpaidBookingByID(id int) (*domain.UnpaidBooking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1 AND is_confirmed AND total_amount > paid_amount
	`

	var b domain.UnpaidBooking
	err := scanBooking(r.db.QueryRow(query, id), &b)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unpaid booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get booking")
		return nil, err
	}

	return &b, nil
}

// scanBooking reads one booking row. The CRUD layer stores the expected
// payment reference in the formatted +++XXX/XXXX/XXXXX+++ form; it is
// normalized to bare digits here so scorer comparisons are
// digit-for-digit. An unusable stored reference becomes nil.
func scanBooking(row rowScanner, b *domain.UnpaidBooking) error {
	err := row.Scan(
		&b.ID,
		&b.OrganisationID,
		&b.StructuredCommunication,
		&b.TotalAmount,
		&b.PaidAmount,
		&b.BookingDate,
		&b.ChildFirstName,
		&b.ChildLastName,
		&b.ParentFirstName,
		&b.ParentLastName,
		&b.ActivityName,
	)
	if err != nil {
		return err
	}

	if b.StructuredCommunication != nil {
		if digits := structcomm.Normalize(*b.StructuredCommunication); digits != "" {
			b.StructuredCommunication = &digits
		} else {
			b.StructuredCommunication = nil
		}
	}
	return nil
}
