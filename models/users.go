package models

import "time"

const (
	RoleHost    = "host"
	RoleWaiter  = "waiter"
	RoleKitchen = "kitchen"
	RoleBar     = "bar"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID string    `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Name         string    `gorm:"type:varchar(255); not null" json:"name"`
	Email        string    `gorm:"type:varchar(255); unique;not null" json:"email"`
	Password     string    `gorm:"type:varchar(255); not null" json:"-"`
	Role         string    `gorm:"type:varchar(20); not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
