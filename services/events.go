package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

// EventRecorder appends FloorEvent rows: the audit trail and the outbox the
// relay publishes from.
type EventRecorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEventRecorder(db *gorm.DB, now func() time.Time) *EventRecorder {
	if now == nil {
		now = time.Now
	}
	return &EventRecorder{db: db, now: now}
}

// Record stores ev, filling EventID and CreatedAt. payload, when non-nil, is
// stored as JSON.
func (r *EventRecorder) Record(ctx context.Context, ev models.FloorEvent, payload interface{}) error {
	ev.EventID = uuid.NewString()
	ev.CreatedAt = r.now()
	ev.Published = false
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ev.Payload = string(raw)
	}
	return r.db.WithContext(ctx).Create(&ev).Error
}

// recordQuietly logs instead of failing: used where the floor change itself
// already succeeded and the event is informational.
func (r *EventRecorder) recordQuietly(ctx context.Context, ev models.FloorEvent, payload interface{}) {
	if err := r.Record(ctx, ev, payload); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"kind":          ev.Kind,
			"entity":        ev.EntityType,
			"entity_id":     ev.EntityID,
			"restaurant_id": ev.RestaurantID,
		}).WithError(err).Error("failed to record floor event")
	}
}

// History returns the audit trail of one entity, oldest first.
func (r *EventRecorder) History(ctx context.Context, actor Actor, entityType, entityID string) ([]models.FloorEvent, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var events []models.FloorEvent
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND entity_type = ? AND entity_id = ?", actor.RestaurantID, entityType, entityID).
		Order("id asc").
		Find(&events).Error
	return events, err
}
