package models

import "time"

// RecentBooking is an eligible booking a manager may file a claim
// against. Eligibility is a rolling window after the booking ends.
type RecentBooking struct {
	ID           int64       `db:"id" json:"id"`
	BookingType  BookingType `db:"booking_type" json:"bookingType"`
	ChefID       string      `db:"chef_id" json:"chefId"`
	ChefName     string      `db:"chef_name" json:"chefName"`
	LocationID   string      `db:"location_id" json:"locationId"`
	LocationName string      `db:"location_name" json:"locationName"`
	StartTime    time.Time   `db:"start_time" json:"startTime"`
	EndTime      time.Time   `db:"end_time" json:"endTime"`
}

// BookingFilter narrows recent-booking lookups.
type BookingFilter struct {
	ManagerID  string
	EndedAfter time.Time
}
