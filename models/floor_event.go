package models

import (
	"time"
)

const (
	EventTableStatusChanged  = "table.status_changed"
	EventTableForceReleased  = "table.force_released"
	EventTableZombieDetected = "table.zombie_detected"
	EventReservationCreated  = "reservation.created"
	EventReservationSeated   = "reservation.seated"
	EventReservationClosed   = "reservation.closed"
	EventOrderOpened         = "order.opened"
	EventOrderItemsAdded     = "order.items_added"
	EventOrderItemReady      = "order.item_ready"
	EventOrderReady          = "order.ready"
	EventOrderBillRequested  = "order.bill_requested"
	EventOrderClosed         = "order.closed"
	EventOrderVoided         = "order.voided"
)

// FloorEvent is the audit trail of floor changes and the outbox the event
// relay publishes from. Override marks operator interventions such as a
// forced release.
type FloorEvent struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	EventID      string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"event_id"`
	RestaurantID string    `gorm:"type:varchar(64);not null;index" json:"restaurant_id"`
	Kind         string    `gorm:"type:varchar(50);not null;index" json:"kind"`
	EntityType   string    `gorm:"type:varchar(20);not null" json:"entity_type"`
	EntityID     string    `gorm:"type:varchar(36);not null;index" json:"entity_id"`
	FromStatus   string    `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus     string    `gorm:"type:varchar(20)" json:"to_status,omitempty"`
	ActorID      uint      `json:"actor_id"`
	Override     bool      `gorm:"not null;default:false" json:"override"`
	Reason       string    `gorm:"type:text" json:"reason,omitempty"`
	Payload      string    `gorm:"type:text" json:"payload,omitempty"`
	Published    bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt    time.Time `gorm:"not null;index" json:"created_at"`
}
