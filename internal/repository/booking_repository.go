package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prepshare/claims-api/internal/models"
)

// BookingRepository reads kitchen and storage bookings eligible for
// claim filing. Bookings are owned by the booking subsystem; this
// repository only consumes them.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ListRecent returns completed bookings for the manager's locations that
// ended within the eligibility window, newest first.
func (r *BookingRepository) ListRecent(ctx context.Context, filter models.BookingFilter) ([]models.RecentBooking, error) {
	const query = `SELECT b.id, b.booking_type, b.chef_id, u.full_name AS chef_name,
       b.location_id, l.name AS location_name, b.start_time, b.end_time
	FROM bookings b
	JOIN users u ON u.id = b.chef_id
	JOIN locations l ON l.id = b.location_id
	WHERE l.manager_id = $1 AND b.end_time >= $2 AND b.end_time <= NOW()
	ORDER BY b.end_time DESC`
	var records []models.RecentBooking
	if err := r.db.SelectContext(ctx, &records, query, filter.ManagerID, filter.EndedAfter); err != nil {
		return nil, fmt.Errorf("list recent bookings: %w", err)
	}
	return records, nil
}

// GetByID retrieves one booking row by id and type.
func (r *BookingRepository) GetByID(ctx context.Context, id int64, bookingType models.BookingType) (*models.RecentBooking, error) {
	const query = `SELECT b.id, b.booking_type, b.chef_id, u.full_name AS chef_name,
       b.location_id, l.name AS location_name, b.start_time, b.end_time
	FROM bookings b
	JOIN users u ON u.id = b.chef_id
	JOIN locations l ON l.id = b.location_id
	WHERE b.id = $1 AND b.booking_type = $2`
	var booking models.RecentBooking
	if err := r.db.GetContext(ctx, &booking, query, id, bookingType); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ManagerOwnsLocation reports whether the manager manages the location.
func (r *BookingRepository) ManagerOwnsLocation(ctx context.Context, managerID, locationID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM locations WHERE id = $1 AND manager_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, locationID, managerID); err != nil {
		return false, fmt.Errorf("check location ownership: %w", err)
	}
	return count > 0, nil
}
