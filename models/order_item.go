package models

import (
	"time"
)

const (
	ItemPending = "pending"
	ItemCooking = "cooking"
	ItemReady   = "ready"
	ItemServed  = "served"
)

const (
	StationKitchen = "kitchen"
	StationBar     = "bar"
)

// itemRank orders the item pipeline; an item never moves to a lower rank.
var itemRank = map[string]int{
	ItemPending: 0,
	ItemCooking: 1,
	ItemReady:   2,
	ItemServed:  3,
}

// ItemStatusRank returns the pipeline position of s and whether s is known.
func ItemStatusRank(s string) (int, bool) {
	r, ok := itemRank[s]
	return r, ok
}

// OrderItem is one line of an order. Name, UnitPrice and Station are
// captured from the menu when the line is added and never change.
// SendKey and LineNo identify the line within one "send" so retried sends
// do not duplicate rows.
type OrderItem struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OrderID      uint       `gorm:"not null;uniqueIndex:idx_item_send" json:"order_id"`
	RestaurantID string     `gorm:"type:varchar(64);not null;index:idx_item_station" json:"restaurant_id"`
	MenuItemID   uint       `gorm:"not null" json:"menu_item_id"`
	Name         string     `gorm:"type:varchar(255);not null" json:"name"`
	Quantity     int        `gorm:"not null" json:"quantity"`
	UnitPrice    float64    `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Station      string     `gorm:"type:varchar(20);not null;index:idx_item_station" json:"station"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes        string     `gorm:"type:text" json:"notes,omitempty"`
	SendKey      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_item_send" json:"send_key"`
	LineNo       int        `gorm:"not null;uniqueIndex:idx_item_send" json:"line_no"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	ServedAt     *time.Time `json:"served_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

// LineAmount is unit price times quantity, before any checkout adjustment.
func (i *OrderItem) LineAmount() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
