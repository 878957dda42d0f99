package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/notify"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

const relayBatch = 100

// EventRelay publishes unpublished floor events and marks them published.
// Floor correctness never depends on it running.
type EventRelay struct {
	DB        *gorm.DB
	Publisher notify.Publisher
	Interval  time.Duration
	StopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventRelay(db *gorm.DB, publisher notify.Publisher, interval time.Duration) *EventRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &EventRelay{
		DB:        db,
		Publisher: publisher,
		Interval:  interval,
		StopChan:  make(chan struct{}),
	}
}

func (r *EventRelay) Start() {
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := r.RelayOnce(context.Background()); err != nil {
					utils.ErrorLogger.WithError(err).Warn("event relay: batch incomplete")
				}
			case <-r.StopChan:
				return
			}
		}
	}()
	utils.InfoLogger.WithField("interval", r.Interval.String()).Info("event relay started")
}

func (r *EventRelay) Stop() {
	r.stopOnce.Do(func() { close(r.StopChan) })
}

// RelayOnce publishes one batch in creation order and returns how many events
// went out. It stops at the first event no sink accepted, so later events are
// not delivered ahead of it; that event is retried next tick. An event some
// sinks accepted is marked published and the failed sinks miss it.
func (r *EventRelay) RelayOnce(ctx context.Context) (int, error) {
	var pending []models.FloorEvent
	if err := r.DB.WithContext(ctx).
		Where("published = ?", false).
		Order("id asc").
		Limit(relayBatch).
		Find(&pending).Error; err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range pending {
		err := r.Publisher.Publish(ctx, notify.FromFloorEvent(ev))
		var partial *notify.PartialError
		if errors.As(err, &partial) {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event_id":  ev.EventID,
				"kind":      ev.Kind,
				"delivered": partial.Delivered,
			}).WithError(partial.Err).Warn("event relay: some sinks missed event")
			err = nil
		}
		if err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event_id": ev.EventID,
				"kind":     ev.Kind,
			}).WithError(err).Warn("event relay: publish failed")
			return sent, err
		}
		if err := r.DB.WithContext(ctx).Model(&models.FloorEvent{}).
			Where("id = ?", ev.ID).
			Update("published", true).Error; err != nil {
			return sent, err
		}
		sent++
	}

	if sent > 0 {
		utils.InfoLogger.WithField("events", sent).Debug("event relay: batch published")
	}
	return sent, nil
}
