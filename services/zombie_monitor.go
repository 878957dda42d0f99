package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

// ZombieMetrics counts monitor activity.
type ZombieMetrics struct {
	Scans    int64 `json:"scans"`
	Detected int64 `json:"detected"`
	Open     int   `json:"open"`
}

// ZombieTable is an occupied or payment_pending table without an active
// order.
type ZombieTable struct {
	TableID      uint      `json:"table_id"`
	RestaurantID string    `json:"restaurant_id"`
	TableNumber  string    `json:"table_number"`
	Status       string    `json:"status"`
	Since        time.Time `json:"since"`
}

// ZombieMonitor reports zombie tables. It only logs and records an audit
// event per episode: recovery stays a manual forced release.
type ZombieMonitor struct {
	db       *gorm.DB
	events   *EventRecorder
	interval time.Duration
	grace    time.Duration
	now      func() time.Time

	metrics ZombieMetrics
	seen    map[uint]string
	mutex   sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

// NewZombieMonitor builds a monitor. Occupied tables younger than grace are
// skipped since a waiter may not have opened the order yet.
func NewZombieMonitor(db *gorm.DB, events *EventRecorder, interval, grace time.Duration, now func() time.Time) *ZombieMonitor {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ZombieMonitor{
		db:       db,
		events:   events,
		interval: interval,
		grace:    grace,
		now:      now,
		seen:     make(map[uint]string),
		stop:     make(chan struct{}),
	}
}

func (zm *ZombieMonitor) Start() {
	go func() {
		ticker := time.NewTicker(zm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := zm.Scan(context.Background()); err != nil {
					utils.ErrorLogger.WithError(err).Error("zombie monitor: scan failed")
				}
			case <-zm.stop:
				return
			}
		}
	}()
	utils.InfoLogger.WithField("interval", zm.interval.String()).Info("zombie monitor started")
}

func (zm *ZombieMonitor) Stop() {
	zm.once.Do(func() { close(zm.stop) })
}

// Scan lists the current zombie tables of every restaurant.
func (zm *ZombieMonitor) Scan(ctx context.Context) ([]ZombieTable, error) {
	active := zm.db.Model(&models.Order{}).
		Select("table_id").
		Where("status <> ?", models.OrderClosed)

	var tables []models.Table
	err := zm.db.WithContext(ctx).
		Where("status IN ?", []string{models.TableOccupied, models.TablePaymentPending}).
		Where("id NOT IN (?)", active).
		Order("id asc").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}

	cutoff := zm.now().Add(-zm.grace)
	var found []ZombieTable
	current := make(map[uint]string)
	for _, t := range tables {
		if t.Status == models.TableOccupied && t.UpdatedAt.After(cutoff) {
			continue
		}
		found = append(found, ZombieTable{
			TableID:      t.ID,
			RestaurantID: t.RestaurantID,
			TableNumber:  t.TableNumber,
			Status:       t.Status,
			Since:        t.UpdatedAt,
		})
		current[t.ID] = t.Status
	}

	zm.mutex.Lock()
	var fresh []ZombieTable
	for _, z := range found {
		if zm.seen[z.TableID] != z.Status {
			fresh = append(fresh, z)
		}
	}
	zm.seen = current
	zm.metrics.Scans++
	zm.metrics.Detected += int64(len(fresh))
	zm.metrics.Open = len(found)
	zm.mutex.Unlock()

	for _, z := range fresh {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"restaurant_id": z.RestaurantID,
			"table_id":      z.TableID,
			"status":        z.Status,
			"since":         z.Since,
		}).Warn("zombie table: no active order, force release required")

		zm.events.recordQuietly(ctx, models.FloorEvent{
			RestaurantID: z.RestaurantID,
			Kind:         models.EventTableZombieDetected,
			EntityType:   "table",
			EntityID:     idString(z.TableID),
			FromStatus:   z.Status,
			ToStatus:     z.Status,
			Reason:       "no active order",
		}, map[string]interface{}{"table_number": z.TableNumber, "since": z.Since})
	}
	return found, nil
}

// GetMetrics returns a copy of the counters.
func (zm *ZombieMonitor) GetMetrics() ZombieMetrics {
	zm.mutex.Lock()
	defer zm.mutex.Unlock()
	return zm.metrics
}
