package models

import "time"

// MenuItem is the catalog row the order manager reads at add time.
type MenuItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Category     string    `gorm:"type:varchar(100)" json:"category,omitempty"`
	Price        float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	Station      string    `gorm:"type:varchar(20);not null;default:'kitchen'" json:"station"`
	Available    bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}
