package models

import "time"

const (
	ReservationConfirmed = "confirmed"
	ReservationSeated    = "seated"
	ReservationNoShow    = "no_show"
	ReservationCancelled = "cancelled"
)

// Reservation is a guest's intent to dine. ID is a UUID so that printed or
// scanned codes can be matched by suffix; ExternalCode is the short code
// unique within a restaurant.
type Reservation struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RestaurantID    string     `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_reservation_code" json:"restaurant_id"`
	ExternalCode    string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_reservation_code" json:"external_code"`
	CustomerID      string     `gorm:"type:varchar(64)" json:"customer_id,omitempty"`
	CustomerName    string     `gorm:"type:varchar(255)" json:"customer_name,omitempty"`
	TableID         *uint      `gorm:"index" json:"table_id,omitempty"`
	ReservationTime time.Time  `gorm:"not null;index" json:"reservation_time"`
	PartySize       int        `gorm:"not null" json:"party_size"`
	Status          string     `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`
	SeatedAt        *time.Time `json:"seated_at,omitempty"`
	CreatedBy       uint       `json:"created_by"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`
}

// IsTerminal reports whether the reservation can no longer change.
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationSeated || r.Status == ReservationNoShow || r.Status == ReservationCancelled
}
