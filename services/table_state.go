package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

// Trigger names why a table changes state.
type Trigger string

const (
	TriggerSeat         Trigger = "seat"
	TriggerReserve      Trigger = "reserve"
	TriggerReleaseHold  Trigger = "release_hold"
	TriggerRequestBill  Trigger = "request_bill"
	TriggerCheckout     Trigger = "checkout"
	TriggerForceRelease Trigger = "force_release"
	TriggerMaintenance  Trigger = "maintenance"
)

type tableTransition struct {
	From    string
	To      string
	Trigger Trigger
}

var tableTransitions = []tableTransition{
	// Seating
	{From: models.TableFree, To: models.TableOccupied, Trigger: TriggerSeat},
	{From: models.TableReserved, To: models.TableOccupied, Trigger: TriggerSeat},

	// Holds
	{From: models.TableFree, To: models.TableReserved, Trigger: TriggerReserve},
	{From: models.TableReserved, To: models.TableFree, Trigger: TriggerReleaseHold},

	// Billing
	{From: models.TableOccupied, To: models.TablePaymentPending, Trigger: TriggerRequestBill},
	{From: models.TablePaymentPending, To: models.TableFree, Trigger: TriggerCheckout},
	{From: models.TableOccupied, To: models.TableFree, Trigger: TriggerCheckout},

	// Operator override
	{From: models.TableOccupied, To: models.TableFree, Trigger: TriggerForceRelease},
	{From: models.TablePaymentPending, To: models.TableFree, Trigger: TriggerForceRelease},
	{From: models.TableReserved, To: models.TableFree, Trigger: TriggerForceRelease},

	// Manual
	{From: models.TableFree, To: models.TableMaintenance, Trigger: TriggerMaintenance},
	{From: models.TableMaintenance, To: models.TableFree, Trigger: TriggerMaintenance},
}

func transitionAllowed(from, to string, trigger Trigger) bool {
	for _, tr := range tableTransitions {
		if tr.From == from && tr.To == to && tr.Trigger == trigger {
			return true
		}
	}
	return false
}

// TransitionResult describes one table transition request. Changed is false
// when the table was already in the requested state.
type TransitionResult struct {
	Table   models.Table `json:"table"`
	From    string       `json:"from"`
	Changed bool         `json:"changed"`
}

type transitionOpts struct {
	// exclusive requests fail instead of no-op'ing when another actor moved
	// the table to the target state first; used where the caller must own
	// the change (seating a specific party, taking a hold).
	exclusive bool
	override  bool
	reason    string
}

// TableService owns Table.status.
type TableService struct {
	db     *gorm.DB
	events *EventRecorder
	now    func() time.Time
}

func NewTableService(db *gorm.DB, events *EventRecorder, now func() time.Time) *TableService {
	if now == nil {
		now = time.Now
	}
	return &TableService{db: db, events: events, now: now}
}

// Get loads a table of the actor's restaurant.
func (s *TableService) Get(ctx context.Context, actor Actor, tableID uint) (*models.Table, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var table models.Table
	if err := s.db.WithContext(ctx).First(&table, tableID).Error; err != nil {
		return nil, storeErr(err, "table", idString(tableID))
	}
	if err := actor.owns("table", idString(table.ID), table.RestaurantID); err != nil {
		return nil, err
	}
	return &table, nil
}

// List returns the actor's tables, optionally filtered by status.
func (s *TableService) List(ctx context.Context, actor Actor, status string) ([]models.Table, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("restaurant_id = ?", actor.RestaurantID)
	if status != "" {
		if !models.IsValidTableStatus(status) {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown table status %q", status)}
		}
		q = q.Where("status = ?", status)
	}
	var tables []models.Table
	if err := q.Order("id asc").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// Transition moves a table to the given state for the given trigger.
// Requesting the state the table is already in succeeds without a write.
func (s *TableService) Transition(ctx context.Context, actor Actor, tableID uint, to string, trigger Trigger) (*TransitionResult, error) {
	return s.transition(ctx, actor, tableID, to, trigger, transitionOpts{})
}

// ForceRelease frees an occupied, payment_pending or reserved table regardless
// of its orders. A non-closed order of the table is closed as voided with
// nothing payable, so the next party starts a fresh tab. The release, the
// voids and their audit rows commit together; if the audit cannot be written
// nothing changes and an InconsistentStateError is returned.
func (s *TableService) ForceRelease(ctx context.Context, actor Actor, tableID uint, reason string) (*TransitionResult, error) {
	if reason == "" {
		reason = "operator override"
	}
	var (
		res    *TransitionResult
		voided []uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := s.withDB(tx)
		var err error
		res, err = scoped.transition(ctx, actor, tableID, models.TableFree, TriggerForceRelease, transitionOpts{override: true, reason: reason})
		if err != nil {
			return err
		}
		voided, err = scoped.voidOrders(ctx, actor, res.Table, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Changed || len(voided) > 0 {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"restaurant_id": actor.RestaurantID,
			"table_id":      tableID,
			"actor_id":      actor.ActorID,
			"from":          res.From,
			"voided_orders": voided,
			"reason":        reason,
		}).Warn("table force-released by operator")
	}
	return res, nil
}

// voidOrders closes every non-closed order of table without payment.
func (s *TableService) voidOrders(ctx context.Context, actor Actor, table models.Table, reason string) ([]uint, error) {
	db := s.db.WithContext(ctx)
	var orders []models.Order
	if err := db.Where("table_id = ? AND status <> ?", table.ID, models.OrderClosed).
		Order("id asc").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	var voided []uint
	now := s.now()
	closer := actor.ActorID
	for _, o := range orders {
		upd := db.Model(&models.Order{}).
			Where("id = ? AND status = ?", o.ID, o.Status).
			Updates(map[string]interface{}{
				"status":          models.OrderClosed,
				"open_table_key":  nil,
				"voided":          true,
				"discount_amount": 0,
				"tip":             0,
				"payable":         0,
				"closed_by":       closer,
				"closed_at":       now,
				"updated_at":      now,
			})
		if upd.Error != nil {
			return nil, fmt.Errorf("void order %d: %w", o.ID, upd.Error)
		}
		if upd.RowsAffected == 0 {
			continue
		}
		err := s.events.Record(ctx, models.FloorEvent{
			RestaurantID: o.RestaurantID,
			Kind:         models.EventOrderVoided,
			EntityType:   "order",
			EntityID:     idString(o.ID),
			FromStatus:   o.Status,
			ToStatus:     models.OrderClosed,
			ActorID:      actor.ActorID,
			Override:     true,
			Reason:       reason,
		}, map[string]interface{}{"table_id": table.ID, "total": o.Total})
		if err != nil {
			return nil, &InconsistentStateError{
				Entity: "order", ID: idString(o.ID),
				Reason: "void could not be recorded", Err: err,
			}
		}
		voided = append(voided, o.ID)
	}
	return voided, nil
}

// withDB returns a copy of s whose reads, writes and events go through db.
func (s *TableService) withDB(db *gorm.DB) *TableService {
	return &TableService{
		db:     db,
		events: &EventRecorder{db: db, now: s.events.now},
		now:    s.now,
	}
}

// SetMaintenance takes a free table out of service or puts it back.
func (s *TableService) SetMaintenance(ctx context.Context, actor Actor, tableID uint, on bool) (*TransitionResult, error) {
	to := models.TableFree
	if on {
		to = models.TableMaintenance
	}
	return s.transition(ctx, actor, tableID, to, TriggerMaintenance, transitionOpts{})
}

func (s *TableService) transition(ctx context.Context, actor Actor, tableID uint, to string, trigger Trigger, opts transitionOpts) (*TransitionResult, error) {
	var lastSeen string
	for attempt := 0; attempt < 2; attempt++ {
		table, err := s.Get(ctx, actor, tableID)
		if err != nil {
			return nil, err
		}
		from := table.Status
		lastSeen = from

		if from == to {
			if opts.exclusive {
				return nil, &ConflictError{
					Entity: "table", ID: idString(tableID), Current: from, Requested: to,
					Reason: "already taken",
				}
			}
			return &TransitionResult{Table: *table, From: from, Changed: false}, nil
		}
		if !transitionAllowed(from, to, trigger) {
			return nil, &ConflictError{
				Entity: "table", ID: idString(tableID), Current: from, Requested: to,
				Reason: fmt.Sprintf("no %s transition from %s", trigger, from),
			}
		}

		now := s.now()
		res := s.db.WithContext(ctx).Model(&models.Table{}).
			Where("id = ? AND status = ?", tableID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": now})
		if res.Error != nil {
			return nil, fmt.Errorf("update table %d: %w", tableID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		table.Status = to
		table.UpdatedAt = now

		kind := models.EventTableStatusChanged
		if opts.override {
			kind = models.EventTableForceReleased
		}
		ev := models.FloorEvent{
			RestaurantID: table.RestaurantID,
			Kind:         kind,
			EntityType:   "table",
			EntityID:     idString(table.ID),
			FromStatus:   from,
			ToStatus:     to,
			ActorID:      actor.ActorID,
			Override:     opts.override,
			Reason:       opts.reason,
		}
		payload := map[string]interface{}{"trigger": trigger, "table_number": table.TableNumber}
		if opts.override {
			if err := s.events.Record(ctx, ev, payload); err != nil {
				return nil, &InconsistentStateError{
					Entity: "table", ID: idString(tableID),
					Reason: "override could not be recorded", Err: err,
				}
			}
		} else {
			s.events.recordQuietly(ctx, ev, payload)
		}

		utils.InfoLogger.WithFields(logrus.Fields{
			"restaurant_id": table.RestaurantID,
			"table_id":      table.ID,
			"actor_id":      actor.ActorID,
			"trigger":       trigger,
		}).Infof("table %s -> %s", from, to)

		return &TransitionResult{Table: *table, From: from, Changed: true}, nil
	}

	return nil, &ConflictError{
		Entity: "table", ID: idString(tableID), Current: lastSeen, Requested: to,
		Reason: "table changed concurrently, re-fetch and retry",
	}
}

// revert undoes a transition this request made when a later step of the same
// logical operation failed. It only writes if the table is still in the state
// this request left it in.
func (s *TableService) revert(ctx context.Context, actor Actor, table models.Table, from, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.Table{}).
		Where("id = ? AND status = ?", table.ID, table.Status).
		Updates(map[string]interface{}{"status": from, "updated_at": s.now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("table %d moved on before revert", table.ID)
	}
	s.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: table.RestaurantID,
		Kind:         models.EventTableStatusChanged,
		EntityType:   "table",
		EntityID:     idString(table.ID),
		FromStatus:   table.Status,
		ToStatus:     from,
		ActorID:      actor.ActorID,
		Reason:       reason,
	}, nil)
	return nil
}
