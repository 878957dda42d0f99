package models

import "time"

const (
	TableFree           = "free"
	TableReserved       = "reserved"
	TableOccupied       = "occupied"
	TablePaymentPending = "payment_pending"
	TableMaintenance    = "maintenance"
)

// Table is one physical seating unit. Rows are created at floor setup and
// never deleted while orders or reservations reference them.
type Table struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:varchar(64);not null;index:idx_table_restaurant_status" json:"restaurant_id"`
	AreaID       string    `gorm:"type:varchar(64)" json:"area_id,omitempty"`
	TableNumber  string    `gorm:"type:varchar(50);not null" json:"table_number"`
	Capacity     int       `gorm:"not null" json:"capacity"`
	Status       string    `gorm:"type:varchar(20);not null;default:'free';index:idx_table_restaurant_status" json:"status"`
	PosX         *float64  `json:"pos_x,omitempty"`
	PosY         *float64  `json:"pos_y,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// IsValidTableStatus reports whether s names a table state.
func IsValidTableStatus(s string) bool {
	switch s {
	case TableFree, TableReserved, TableOccupied, TablePaymentPending, TableMaintenance:
		return true
	}
	return false
}
