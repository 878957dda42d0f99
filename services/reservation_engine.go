package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

const (
	minSuffixLength  = 4
	codeAlphabet     = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength       = 6
	codeInsertTries  = 3
	defaultHoldRange = 90 * time.Minute
)

// NewReservation is the input of Create.
type NewReservation struct {
	CustomerID          string
	CustomerName        string
	ReservationTime     time.Time
	PartySize           int
	Notes               string
	TableID             *uint
	ConfirmOverCapacity bool
}

// SeatingTarget is the party being seated: a reservation, or a walk-in of
// PartySize guests when ReservationID is empty.
type SeatingTarget struct {
	ReservationID string
	PartySize     int
}

// Assignment is the outcome of seating or checking in a party.
type Assignment struct {
	Table               *models.Table       `json:"table,omitempty"`
	Reservation         *models.Reservation `json:"reservation,omitempty"`
	Changed             bool                `json:"changed"`
	CapacityWarning     *CapacityWarning    `json:"capacity_warning,omitempty"`
	NeedsTableSelection bool                `json:"needs_table_selection"`
}

// ReservationFilter narrows ListReservations. Zero values are ignored.
type ReservationFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

// ReservationEngine binds reservations and walk-ins to tables.
type ReservationEngine struct {
	db         *gorm.DB
	tables     *TableService
	events     *EventRecorder
	now        func() time.Time
	holdWindow time.Duration
}

func NewReservationEngine(db *gorm.DB, tables *TableService, events *EventRecorder, now func() time.Time, holdWindow time.Duration) *ReservationEngine {
	if now == nil {
		now = time.Now
	}
	if holdWindow <= 0 {
		holdWindow = defaultHoldRange
	}
	return &ReservationEngine{db: db, tables: tables, events: events, now: now, holdWindow: holdWindow}
}

// Get loads a reservation of the actor's restaurant.
func (e *ReservationEngine) Get(ctx context.Context, actor Actor, id string) (*models.Reservation, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var res models.Reservation
	if err := e.db.WithContext(ctx).Where("id = ?", strings.ToLower(strings.TrimSpace(id))).First(&res).Error; err != nil {
		return nil, storeErr(err, "reservation", id)
	}
	if err := actor.owns("reservation", res.ID, res.RestaurantID); err != nil {
		return nil, err
	}
	return &res, nil
}

func (e *ReservationEngine) List(ctx context.Context, actor Actor, f ReservationFilter) ([]models.Reservation, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	q := e.db.WithContext(ctx).Where("restaurant_id = ?", actor.RestaurantID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.From.IsZero() {
		q = q.Where("reservation_time >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("reservation_time <= ?", f.To.UTC())
	}
	var out []models.Reservation
	if err := q.Order("reservation_time asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a confirmed reservation. With a table it is pre-assigned;
// when that fails the stored reservation is returned together with the error.
func (e *ReservationEngine) Create(ctx context.Context, actor Actor, in NewReservation) (*models.Reservation, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.PartySize < 1 {
		return nil, &ValidationError{Field: "party_size", Reason: "must be at least 1"}
	}
	if in.ReservationTime.IsZero() {
		return nil, &ValidationError{Field: "reservation_time", Reason: "required"}
	}
	if in.TableID != nil {
		if _, err := e.tables.Get(ctx, actor, *in.TableID); err != nil {
			return nil, err
		}
	}

	res := models.Reservation{
		RestaurantID:    actor.RestaurantID,
		CustomerID:      in.CustomerID,
		CustomerName:    in.CustomerName,
		ReservationTime: in.ReservationTime.UTC(),
		PartySize:       in.PartySize,
		Status:          models.ReservationConfirmed,
		Notes:           in.Notes,
		CreatedBy:       actor.ActorID,
	}

	var lastErr error
	for try := 0; try < codeInsertTries; try++ {
		code, err := externalCode(actor.RestaurantID)
		if err != nil {
			return nil, err
		}
		res.ID = uuid.NewString()
		res.ExternalCode = code
		if lastErr = e.db.WithContext(ctx).Create(&res).Error; lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("create reservation: %w", lastErr)
	}

	e.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: res.RestaurantID,
		Kind:         models.EventReservationCreated,
		EntityType:   "reservation",
		EntityID:     res.ID,
		ToStatus:     res.Status,
		ActorID:      actor.ActorID,
	}, map[string]interface{}{
		"external_code":    res.ExternalCode,
		"party_size":       res.PartySize,
		"reservation_time": res.ReservationTime,
	})

	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id":  res.RestaurantID,
		"reservation_id": res.ID,
		"party_size":     res.PartySize,
	}).Info("reservation created")

	if in.TableID != nil {
		assigned, err := e.PreAssign(ctx, actor, res.ID, *in.TableID, in.ConfirmOverCapacity)
		if err != nil {
			return &res, err
		}
		return assigned.Reservation, nil
	}
	return &res, nil
}

// PreAssign holds a free table for a confirmed reservation.
func (e *ReservationEngine) PreAssign(ctx context.Context, actor Actor, reservationID string, tableID uint, confirmOverCapacity bool) (*Assignment, error) {
	res, err := e.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ReservationConfirmed {
		return nil, &ConflictError{
			Entity: "reservation", ID: res.ID, Current: res.Status, Requested: "pre-assigned",
			Reason: "only confirmed reservations hold tables",
		}
	}
	table, err := e.tables.Get(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}
	if res.TableID != nil && *res.TableID == tableID && table.Status == models.TableReserved {
		return &Assignment{Table: table, Reservation: res}, nil
	}

	warning := capacityCheck(table, res.PartySize)
	if warning != nil && !confirmOverCapacity {
		return nil, warning
	}

	moved, err := e.tables.transition(ctx, actor, tableID, models.TableReserved, TriggerReserve, transitionOpts{exclusive: true})
	if err != nil {
		return nil, err
	}

	previous := res.TableID
	upd := e.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", res.ID, models.ReservationConfirmed).
		Updates(map[string]interface{}{"table_id": tableID, "updated_at": e.now()})
	if upd.Error != nil || upd.RowsAffected == 0 {
		if rerr := e.tables.revert(ctx, actor, moved.Table, moved.From, "reverted after failed pre-assignment"); rerr != nil {
			return nil, &InconsistentStateError{
				Entity: "table", ID: idString(tableID),
				Reason: "held for a reservation that could not be updated", Err: rerr,
			}
		}
		if upd.Error != nil {
			return nil, fmt.Errorf("pre-assign reservation %s: %w", res.ID, upd.Error)
		}
		return nil, &ConflictError{
			Entity: "reservation", ID: res.ID, Current: "changed", Requested: "pre-assigned",
			Reason: "reservation changed concurrently",
		}
	}
	res.TableID = &tableID

	out := &Assignment{Table: &moved.Table, Reservation: res, Changed: true, CapacityWarning: warning}
	if previous != nil && *previous != tableID {
		if err := e.releaseHold(ctx, actor, *previous); err != nil {
			return out, err
		}
	}
	return out, nil
}

// FindCandidateTables returns free tables that fit partySize, tightest fit
// first, then by id. Tables bound to another confirmed reservation within the
// hold window around asOf are left out.
func (e *ReservationEngine) FindCandidateTables(ctx context.Context, actor Actor, partySize int, asOf time.Time) ([]models.Table, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if partySize < 1 {
		return nil, &ValidationError{Field: "party_size", Reason: "must be at least 1"}
	}
	if asOf.IsZero() {
		asOf = e.now()
	}
	asOf = asOf.UTC()

	held := e.db.Model(&models.Reservation{}).
		Select("table_id").
		Where("restaurant_id = ? AND status = ? AND table_id IS NOT NULL", actor.RestaurantID, models.ReservationConfirmed).
		Where("reservation_time BETWEEN ? AND ?", asOf.Add(-e.holdWindow), asOf.Add(e.holdWindow))

	var tables []models.Table
	err := e.db.WithContext(ctx).
		Where("restaurant_id = ? AND status = ? AND capacity >= ?", actor.RestaurantID, models.TableFree, partySize).
		Where("id NOT IN (?)", held).
		Order("capacity asc").
		Order("id asc").
		Find(&tables).Error
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Assign seats a reservation or walk-in at tableID. A party larger than the
// table is refused with a CapacityWarning unless confirmOverCapacity is set.
func (e *ReservationEngine) Assign(ctx context.Context, actor Actor, target SeatingTarget, tableID uint, confirmOverCapacity bool) (*Assignment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var res *models.Reservation
	partySize := target.PartySize
	if target.ReservationID != "" {
		var err error
		res, err = e.Get(ctx, actor, target.ReservationID)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case models.ReservationSeated:
			if res.TableID != nil && *res.TableID == tableID {
				return e.existingAssignment(ctx, actor, res)
			}
			return nil, &ConflictError{
				Entity: "reservation", ID: res.ID, Current: res.Status, Requested: models.ReservationSeated,
				Reason: "already seated at another table",
			}
		case models.ReservationNoShow, models.ReservationCancelled:
			return nil, &ConflictError{Entity: "reservation", ID: res.ID, Current: res.Status, Requested: models.ReservationSeated}
		}
		partySize = res.PartySize
	}
	if partySize < 1 {
		return nil, &ValidationError{Field: "party_size", Reason: "must be at least 1"}
	}

	table, err := e.tables.Get(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}
	warning := capacityCheck(table, partySize)
	if warning != nil && !confirmOverCapacity {
		return nil, warning
	}
	if table.Status == models.TableReserved && !holds(res, tableID) {
		return nil, &ConflictError{
			Entity: "table", ID: idString(tableID), Current: table.Status, Requested: models.TableOccupied,
			Reason: "held for another reservation",
		}
	}

	if res == nil {
		moved, err := e.tables.transition(ctx, actor, tableID, models.TableOccupied, TriggerSeat, transitionOpts{exclusive: true})
		if err != nil {
			return nil, err
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"restaurant_id": actor.RestaurantID,
			"table_id":      tableID,
			"party_size":    partySize,
		}).Info("walk-in seated")
		return &Assignment{Table: &moved.Table, Changed: true, CapacityWarning: warning}, nil
	}

	// The reservation row decides which of two concurrent seatings wins;
	// the table follows.
	now := e.now()
	previous := res.TableID
	claim := e.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", res.ID, models.ReservationConfirmed).
		Updates(map[string]interface{}{
			"status":     models.ReservationSeated,
			"table_id":   tableID,
			"seated_at":  now,
			"updated_at": now,
		})
	if claim.Error != nil {
		return nil, fmt.Errorf("seat reservation %s: %w", res.ID, claim.Error)
	}
	if claim.RowsAffected == 0 {
		again, err := e.Get(ctx, actor, res.ID)
		if err != nil {
			return nil, err
		}
		if again.Status == models.ReservationSeated && holds(again, tableID) {
			return e.existingAssignment(ctx, actor, again)
		}
		return nil, &ConflictError{
			Entity: "reservation", ID: res.ID, Current: again.Status, Requested: models.ReservationSeated,
			Reason: "reservation changed concurrently",
		}
	}

	moved, err := e.tables.transition(ctx, actor, tableID, models.TableOccupied, TriggerSeat, transitionOpts{exclusive: true})
	if err != nil {
		if uerr := e.unseat(ctx, res.ID, tableID, previous); uerr != nil {
			return nil, &InconsistentStateError{
				Entity: "reservation", ID: res.ID,
				Reason: "seated but its table could not be taken", Err: uerr,
			}
		}
		return nil, err
	}

	out := &Assignment{Table: &moved.Table, Changed: true, CapacityWarning: warning}
	res.Status = models.ReservationSeated
	res.TableID = &tableID
	res.SeatedAt = &now
	out.Reservation = res

	e.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: res.RestaurantID,
		Kind:         models.EventReservationSeated,
		EntityType:   "reservation",
		EntityID:     res.ID,
		FromStatus:   models.ReservationConfirmed,
		ToStatus:     models.ReservationSeated,
		ActorID:      actor.ActorID,
	}, map[string]interface{}{"table_id": tableID, "party_size": res.PartySize})

	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id":  res.RestaurantID,
		"reservation_id": res.ID,
		"table_id":       tableID,
	}).Info("reservation seated")

	if previous != nil && *previous != tableID {
		if err := e.releaseHold(ctx, actor, *previous); err != nil {
			return out, err
		}
	}
	return out, nil
}

// CheckIn seats a confirmed reservation at its pre-assigned table. Checking
// in a seated reservation again returns the existing assignment. Without a
// pre-assigned table nothing changes and NeedsTableSelection is set.
func (e *ReservationEngine) CheckIn(ctx context.Context, actor Actor, reservationID string) (*Assignment, error) {
	res, err := e.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status == models.ReservationSeated {
		return e.existingAssignment(ctx, actor, res)
	}
	if res.IsTerminal() {
		return nil, &ConflictError{Entity: "reservation", ID: res.ID, Current: res.Status, Requested: models.ReservationSeated}
	}
	if res.TableID == nil {
		return &Assignment{Reservation: res, NeedsTableSelection: true}, nil
	}
	// capacity was confirmed when the table was pre-assigned
	return e.Assign(ctx, actor, SeatingTarget{ReservationID: res.ID}, *res.TableID, true)
}

// ResolveCheckInCode matches a scanned or typed code against, in order, the
// reservation id, a unique id suffix, and the restaurant's external codes.
func (e *ReservationEngine) ResolveCheckInCode(ctx context.Context, actor Actor, code string) (*models.Reservation, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "required"}
	}
	db := e.db.WithContext(ctx)
	lower := strings.ToLower(code)

	var res models.Reservation
	err := db.Where("id = ?", lower).First(&res).Error
	if err == nil {
		if err := actor.owns("reservation", res.ID, res.RestaurantID); err != nil {
			return nil, err
		}
		return &res, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "reservation", code)
	}

	if len(lower) >= minSuffixLength && !strings.ContainsAny(lower, `%_\`) {
		found, err := e.matchSuffix(ctx, actor, lower)
		if err != nil || found != nil {
			return found, err
		}
	}

	upper := strings.ToUpper(code)
	err = db.Where("restaurant_id = ? AND external_code = ?", actor.RestaurantID, upper).First(&res).Error
	if err == nil {
		return &res, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "reservation", code)
	}
	var foreign models.Reservation
	if err := db.Where("external_code = ?", upper).First(&foreign).Error; err == nil {
		return nil, &CrossTenantError{Entity: "reservation", ID: foreign.ID, Owner: foreign.RestaurantID, Caller: actor.RestaurantID}
	}

	return nil, &NotFoundError{Entity: "check-in code", Key: code}
}

// matchSuffix returns the single reservation whose id ends with suffix. An
// ambiguous suffix matches nothing.
func (e *ReservationEngine) matchSuffix(ctx context.Context, actor Actor, suffix string) (*models.Reservation, error) {
	var own []models.Reservation
	if err := e.db.WithContext(ctx).
		Where("restaurant_id = ? AND id LIKE ?", actor.RestaurantID, "%"+suffix).
		Limit(2).Find(&own).Error; err != nil {
		return nil, err
	}
	if len(own) == 1 {
		return &own[0], nil
	}
	if len(own) > 1 {
		return nil, nil
	}

	var foreign []models.Reservation
	if err := e.db.WithContext(ctx).
		Where("id LIKE ?", "%"+suffix).
		Limit(2).Find(&foreign).Error; err != nil {
		return nil, err
	}
	if len(foreign) == 1 {
		return nil, &CrossTenantError{Entity: "reservation", ID: foreign[0].ID, Owner: foreign[0].RestaurantID, Caller: actor.RestaurantID}
	}
	return nil, nil
}

// MarkNoShow closes a confirmed reservation whose guests did not arrive.
func (e *ReservationEngine) MarkNoShow(ctx context.Context, actor Actor, reservationID string) (*models.Reservation, bool, error) {
	return e.close(ctx, actor, reservationID, models.ReservationNoShow)
}

// Cancel closes a confirmed reservation on request.
func (e *ReservationEngine) Cancel(ctx context.Context, actor Actor, reservationID string) (*models.Reservation, bool, error) {
	return e.close(ctx, actor, reservationID, models.ReservationCancelled)
}

func (e *ReservationEngine) close(ctx context.Context, actor Actor, reservationID, to string) (*models.Reservation, bool, error) {
	res, err := e.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, false, err
	}
	if res.Status == to {
		return res, false, nil
	}
	if res.IsTerminal() {
		return nil, false, &ConflictError{Entity: "reservation", ID: res.ID, Current: res.Status, Requested: to}
	}

	upd := e.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", res.ID, models.ReservationConfirmed).
		Updates(map[string]interface{}{"status": to, "updated_at": e.now()})
	if upd.Error != nil {
		return nil, false, fmt.Errorf("close reservation %s: %w", res.ID, upd.Error)
	}
	if upd.RowsAffected == 0 {
		again, err := e.Get(ctx, actor, res.ID)
		if err != nil {
			return nil, false, err
		}
		if again.Status == to {
			return again, false, nil
		}
		return nil, false, &ConflictError{Entity: "reservation", ID: res.ID, Current: again.Status, Requested: to}
	}
	from := res.Status
	res.Status = to

	e.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: res.RestaurantID,
		Kind:         models.EventReservationClosed,
		EntityType:   "reservation",
		EntityID:     res.ID,
		FromStatus:   from,
		ToStatus:     to,
		ActorID:      actor.ActorID,
	}, nil)

	if res.TableID != nil {
		if err := e.releaseHold(ctx, actor, *res.TableID); err != nil {
			return res, true, err
		}
	}
	return res, true, nil
}

// releaseHold frees a table still reserved for a reservation that no longer
// needs it. A table that has since moved on is left alone.
func (e *ReservationEngine) releaseHold(ctx context.Context, actor Actor, tableID uint) error {
	table, err := e.tables.Get(ctx, actor, tableID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if table.Status != models.TableReserved {
		return nil
	}
	if _, err := e.tables.transition(ctx, actor, tableID, models.TableFree, TriggerReleaseHold, transitionOpts{}); err != nil {
		if IsConflict(err) {
			return nil
		}
		return &InconsistentStateError{
			Entity: "table", ID: idString(tableID),
			Reason: "still reserved for a released reservation", Err: err,
		}
	}
	return nil
}

// unseat puts a reservation claimed by Assign back to confirmed when its
// table could not be taken.
func (e *ReservationEngine) unseat(ctx context.Context, reservationID string, tableID uint, previous *uint) error {
	res := e.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND table_id = ?", reservationID, models.ReservationSeated, tableID).
		Updates(map[string]interface{}{
			"status":     models.ReservationConfirmed,
			"table_id":   previous,
			"seated_at":  nil,
			"updated_at": e.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reservation %s moved on before unseat", reservationID)
	}
	return nil
}

func (e *ReservationEngine) existingAssignment(ctx context.Context, actor Actor, res *models.Reservation) (*Assignment, error) {
	out := &Assignment{Reservation: res}
	if res.TableID != nil {
		table, err := e.tables.Get(ctx, actor, *res.TableID)
		if err != nil {
			return nil, err
		}
		out.Table = table
	}
	return out, nil
}

func holds(res *models.Reservation, tableID uint) bool {
	return res != nil && res.TableID != nil && *res.TableID == tableID
}

func capacityCheck(table *models.Table, partySize int) *CapacityWarning {
	if partySize <= table.Capacity {
		return nil
	}
	return &CapacityWarning{TableID: table.ID, Capacity: table.Capacity, PartySize: partySize}
}

// externalCode builds "<PREFIX>-<6 chars>" from the restaurant id, using an
// alphabet without look-alike characters.
func externalCode(restaurantID string) (string, error) {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(restaurantID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			prefix.WriteRune(r)
			if prefix.Len() == 4 {
				break
			}
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("RSV")
	}

	buf := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate reservation code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return prefix.String() + "-" + string(buf), nil
}
