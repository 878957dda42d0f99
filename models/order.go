package models

import (
	"time"
)

const (
	OrderOpen           = "open"
	OrderPaymentPending = "payment_pending"
	OrderClosed         = "closed"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Order is the open tab of a seated table.
//
// A Voided order was closed by a forced table release without payment.
//
// OpenTableKey holds the table id while the order is not closed and NULL
// afterwards; its unique index keeps one non-closed order per table.
type Order struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	RestaurantID    string      `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	TableID         uint        `gorm:"not null;index" json:"table_id"`
	WaiterID        uint        `gorm:"not null" json:"waiter_id"`
	Status          string      `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	OpenTableKey    *uint       `gorm:"uniqueIndex" json:"-"`
	Total           float64     `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	DiscountType    string      `gorm:"type:varchar(20)" json:"discount_type,omitempty"`
	Discount        float64     `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	DiscountAmount  float64     `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	Tip             float64     `gorm:"type:decimal(12,2);not null;default:0" json:"tip"`
	Payable         float64     `gorm:"type:decimal(12,2);not null;default:0" json:"payable"`
	PaymentMethod   string      `gorm:"type:varchar(20)" json:"payment_method,omitempty"`
	Voided          bool        `gorm:"not null;default:false" json:"voided"`
	BillRequestedAt *time.Time  `json:"bill_requested_at,omitempty"`
	ClosedBy        *uint       `json:"closed_by,omitempty"`
	ClosedAt        *time.Time  `json:"closed_at,omitempty"`
	CreatedAt       time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null" json:"updated_at"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}
