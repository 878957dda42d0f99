package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-floor/models"
	"gorm.io/gorm"
)

// Floor groups the floor services over one store.
type Floor struct {
	Tables       *TableService
	Reservations *ReservationEngine
	Orders       *OrderManager
	Checkout     *CheckoutEngine
	Events       *EventRecorder

	db         *gorm.DB
	now        func() time.Time
	holdWindow time.Duration
}

type floorOptions struct {
	now        func() time.Time
	holdWindow time.Duration
}

type FloorOption func(*floorOptions)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) FloorOption {
	return func(o *floorOptions) { o.now = now }
}

// WithHoldWindow sets how far around a reservation's time its table is kept
// out of the candidate list.
func WithHoldWindow(d time.Duration) FloorOption {
	return func(o *floorOptions) { o.holdWindow = d }
}

func NewFloor(db *gorm.DB, opts ...FloorOption) *Floor {
	o := floorOptions{now: time.Now, holdWindow: defaultHoldRange}
	for _, opt := range opts {
		opt(&o)
	}

	events := NewEventRecorder(db, o.now)
	tables := NewTableService(db, events, o.now)
	orders := NewOrderManager(db, tables, events, NewGormCatalog(db), o.now)
	return &Floor{
		Tables:       tables,
		Reservations: NewReservationEngine(db, tables, events, o.now, o.holdWindow),
		Orders:       orders,
		Checkout:     NewCheckoutEngine(db, tables, orders, events, o.now),
		Events:       events,
		db:           db,
		now:          o.now,
		holdWindow:   o.holdWindow,
	}
}

// TableView is a table with the summary of what is happening on it.
type TableView struct {
	models.Table
	OrderID       *uint   `json:"order_id,omitempty"`
	OrderStatus   string  `json:"order_status,omitempty"`
	OrderTotal    float64 `json:"order_total,omitempty"`
	ReservationID string  `json:"reservation_id,omitempty"`
}

// FloorSnapshot is what staff views poll.
type FloorSnapshot struct {
	RestaurantID string               `json:"restaurant_id"`
	Tables       []TableView          `json:"tables"`
	Upcoming     []models.Reservation `json:"upcoming_reservations"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// Snapshot reads the restaurant's floor: every table with its active order
// and holding reservation, plus confirmed reservations within the hold window.
func (f *Floor) Snapshot(ctx context.Context, actor Actor) (*FloorSnapshot, error) {
	tables, err := f.Tables.List(ctx, actor, "")
	if err != nil {
		return nil, err
	}
	db := f.db.WithContext(ctx)

	var orders []models.Order
	if err := db.Where("restaurant_id = ? AND status <> ?", actor.RestaurantID, models.OrderClosed).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	byTable := make(map[uint]models.Order, len(orders))
	for _, o := range orders {
		byTable[o.TableID] = o
	}

	now := f.now().UTC()
	var confirmed []models.Reservation
	if err := db.Where("restaurant_id = ? AND status = ?", actor.RestaurantID, models.ReservationConfirmed).
		Order("reservation_time asc").
		Find(&confirmed).Error; err != nil {
		return nil, err
	}
	holders := make(map[uint]string)
	upcoming := make([]models.Reservation, 0)
	for _, r := range confirmed {
		if r.TableID != nil {
			holders[*r.TableID] = r.ID
		}
		if r.ReservationTime.After(now.Add(-f.holdWindow)) && r.ReservationTime.Before(now.Add(f.holdWindow)) {
			upcoming = append(upcoming, r)
		}
	}

	views := make([]TableView, 0, len(tables))
	for _, t := range tables {
		v := TableView{Table: t, ReservationID: holders[t.ID]}
		if o, ok := byTable[t.ID]; ok {
			id := o.ID
			v.OrderID = &id
			v.OrderStatus = o.Status
			v.OrderTotal = o.Total
		}
		views = append(views, v)
	}

	return &FloorSnapshot{
		RestaurantID: actor.RestaurantID,
		Tables:       views,
		Upcoming:     upcoming,
		GeneratedAt:  f.now(),
	}, nil
}
