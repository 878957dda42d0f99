package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

const itemAdvanceTries = 3

var errOrderNotOpen = errors.New("order is not open")

// MenuCatalog resolves a menu item at add time. Name, price and station are
// captured on the order line and never looked up again.
type MenuCatalog interface {
	Lookup(ctx context.Context, restaurantID string, menuItemID uint) (*models.MenuItem, error)
}

// GormCatalog reads the menu_items table.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) Lookup(ctx context.Context, restaurantID string, menuItemID uint) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := c.db.WithContext(ctx).First(&item, menuItemID).Error; err != nil {
		return nil, storeErr(err, "menu item", idString(menuItemID))
	}
	if item.RestaurantID != restaurantID {
		return nil, &CrossTenantError{Entity: "menu item", ID: idString(item.ID), Owner: item.RestaurantID, Caller: restaurantID}
	}
	if !item.Available {
		return nil, &ValidationError{Field: "menu_item_id", Reason: fmt.Sprintf("%s is not available", item.Name)}
	}
	return &item, nil
}

// ItemRequest is one line of a send.
type ItemRequest struct {
	MenuItemID uint   `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

// OrderManager owns orders, their items and totals.
type OrderManager struct {
	db      *gorm.DB
	tables  *TableService
	events  *EventRecorder
	catalog MenuCatalog
	now     func() time.Time
}

func NewOrderManager(db *gorm.DB, tables *TableService, events *EventRecorder, catalog MenuCatalog, now func() time.Time) *OrderManager {
	if now == nil {
		now = time.Now
	}
	if catalog == nil {
		catalog = NewGormCatalog(db)
	}
	return &OrderManager{db: db, tables: tables, events: events, catalog: catalog, now: now}
}

// GetOrder loads an order with its items in insertion order.
func (m *OrderManager) GetOrder(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var order models.Order
	err := m.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&order, orderID).Error
	if err != nil {
		return nil, storeErr(err, "order", idString(orderID))
	}
	if err := actor.owns("order", idString(order.ID), order.RestaurantID); err != nil {
		return nil, err
	}
	return &order, nil
}

// ActiveOrderForTable returns the non-closed order of a table.
func (m *OrderManager) ActiveOrderForTable(ctx context.Context, actor Actor, tableID uint) (*models.Order, error) {
	if _, err := m.tables.Get(ctx, actor, tableID); err != nil {
		return nil, err
	}
	order, err := m.activeOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &NotFoundError{Entity: "active order for table", Key: idString(tableID)}
	}
	return order, nil
}

func (m *OrderManager) activeOrder(ctx context.Context, tableID uint) (*models.Order, error) {
	var orders []models.Order
	err := m.db.WithContext(ctx).
		Where("table_id = ? AND status <> ?", tableID, models.OrderClosed).
		Order("id asc").
		Limit(1).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

// OpenOrCreateOrder returns the table's non-closed order, creating an empty
// one when the table is occupied and has none. created reports which.
func (m *OrderManager) OpenOrCreateOrder(ctx context.Context, actor Actor, tableID uint) (order *models.Order, created bool, err error) {
	table, err := m.tables.Get(ctx, actor, tableID)
	if err != nil {
		return nil, false, err
	}
	if existing, err := m.activeOrder(ctx, tableID); err != nil {
		return nil, false, err
	} else if existing != nil {
		order, err := m.GetOrder(ctx, actor, existing.ID)
		return order, false, err
	}

	switch table.Status {
	case models.TableOccupied:
	case models.TablePaymentPending:
		return nil, false, &InconsistentStateError{
			Entity: "table", ID: idString(tableID),
			Reason: "awaiting payment without an order",
		}
	default:
		return nil, false, &ConflictError{
			Entity: "table", ID: idString(tableID), Current: table.Status, Requested: models.TableOccupied,
			Reason: "seat guests before opening an order",
		}
	}

	key := tableID
	fresh := models.Order{
		RestaurantID: table.RestaurantID,
		TableID:      tableID,
		WaiterID:     actor.ActorID,
		Status:       models.OrderOpen,
		OpenTableKey: &key,
	}
	if err := m.db.WithContext(ctx).Create(&fresh).Error; err != nil {
		// lost the one-open-order-per-table race
		if winner, rerr := m.activeOrder(ctx, tableID); rerr == nil && winner != nil {
			order, err := m.GetOrder(ctx, actor, winner.ID)
			return order, false, err
		}
		return nil, false, fmt.Errorf("create order for table %d: %w", tableID, err)
	}

	m.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: fresh.RestaurantID,
		Kind:         models.EventOrderOpened,
		EntityType:   "order",
		EntityID:     idString(fresh.ID),
		ToStatus:     fresh.Status,
		ActorID:      actor.ActorID,
	}, map[string]interface{}{"table_id": tableID})

	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": fresh.RestaurantID,
		"order_id":      fresh.ID,
		"table_id":      tableID,
		"waiter_id":     actor.ActorID,
	}).Info("order opened")

	return &fresh, true, nil
}

// AppendItems adds one send of items to an open order. Lines already stored
// under the same sendKey are skipped, so a retried send never duplicates rows.
// An empty sendKey starts a new send.
func (m *OrderManager) AppendItems(ctx context.Context, actor Actor, orderID uint, sendKey string, items []ItemRequest) (*models.Order, []models.OrderItem, error) {
	if len(items) == 0 {
		return nil, nil, &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range items {
		if it.Quantity < 1 {
			return nil, nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be at least 1"}
		}
	}

	order, err := m.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status != models.OrderOpen {
		return nil, nil, &ConflictError{
			Entity: "order", ID: idString(orderID), Current: order.Status, Requested: "append items",
			Reason: "items can only be added to an open order",
		}
	}
	if sendKey == "" {
		sendKey = uuid.NewString()
	}

	// resolve the whole send before writing any line
	menu := make([]*models.MenuItem, len(items))
	for i, it := range items {
		mi, err := m.catalog.Lookup(ctx, order.RestaurantID, it.MenuItemID)
		if err != nil {
			return nil, nil, err
		}
		menu[i] = mi
	}

	// one transaction per send, guarded on the order still being open
	var added []models.OrderItem
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		added = added[:0]
		guard := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.OrderOpen).
			Update("updated_at", m.now())
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return errOrderNotOpen
		}

		var stored []int
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND send_key = ?", orderID, sendKey).
			Pluck("line_no", &stored).Error; err != nil {
			return err
		}
		have := make(map[int]bool, len(stored))
		for _, n := range stored {
			have[n] = true
		}

		for i, it := range items {
			lineNo := i + 1
			if have[lineNo] {
				continue
			}
			line := models.OrderItem{
				OrderID:      orderID,
				RestaurantID: order.RestaurantID,
				MenuItemID:   menu[i].ID,
				Name:         menu[i].Name,
				Quantity:     it.Quantity,
				UnitPrice:    utils.RoundMoney(menu[i].Price),
				Station:      menu[i].Station,
				Status:       models.ItemPending,
				Notes:        it.Notes,
				SendKey:      sendKey,
				LineNo:       lineNo,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			added = append(added, line)
		}
		return nil
	})
	switch {
	case errors.Is(err, errOrderNotOpen):
		current := models.OrderClosed
		if again, gerr := m.GetOrder(ctx, actor, orderID); gerr == nil {
			current = again.Status
		}
		return nil, nil, &ConflictError{
			Entity: "order", ID: idString(orderID), Current: current, Requested: "append items",
			Reason: "items can only be added to an open order",
		}
	case err != nil:
		// a concurrent retry of the same send may have stored it first
		var n int64
		if cerr := m.db.WithContext(ctx).Model(&models.OrderItem{}).
			Where("order_id = ? AND send_key = ?", orderID, sendKey).
			Count(&n).Error; cerr != nil || n < int64(len(items)) {
			return nil, nil, fmt.Errorf("append items to order %d: %w", orderID, err)
		}
		added = nil
	}

	if _, err := m.RecomputeTotal(ctx, orderID); err != nil {
		return nil, nil, err
	}

	if len(added) > 0 {
		stations := map[string]int{}
		for _, it := range added {
			stations[it.Station]++
		}
		m.events.recordQuietly(ctx, models.FloorEvent{
			RestaurantID: order.RestaurantID,
			Kind:         models.EventOrderItemsAdded,
			EntityType:   "order",
			EntityID:     idString(orderID),
			ActorID:      actor.ActorID,
		}, map[string]interface{}{"send_key": sendKey, "table_id": order.TableID, "stations": stations})

		utils.InfoLogger.WithFields(logrus.Fields{
			"restaurant_id": order.RestaurantID,
			"order_id":      orderID,
			"send_key":      sendKey,
			"lines":         len(added),
		}).Info("items sent")
	}

	fresh, err := m.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, nil, err
	}
	return fresh, added, nil
}

// RecomputeTotal derives the order total from its persisted items in one
// statement and returns it. The total of a closed order is left as it was
// billed.
func (m *OrderManager) RecomputeTotal(ctx context.Context, orderID uint) (float64, error) {
	return recomputeTotal(m.db.WithContext(ctx), orderID, m.now())
}

func recomputeTotal(db *gorm.DB, orderID uint, now time.Time) (float64, error) {
	err := db.Exec(
		"UPDATE orders SET total = (SELECT COALESCE(ROUND(SUM(unit_price * quantity), 2), 0) FROM order_items WHERE order_items.order_id = orders.id), updated_at = ? WHERE id = ? AND status <> ?",
		now, orderID, models.OrderClosed,
	).Error
	if err != nil {
		return 0, fmt.Errorf("recompute total of order %d: %w", orderID, err)
	}
	var order models.Order
	if err := db.Select("id", "total").First(&order, orderID).Error; err != nil {
		return 0, storeErr(err, "order", idString(orderID))
	}
	return utils.RoundMoney(order.Total), nil
}

// AdvanceItemStatus moves an item forward along pending, cooking, ready,
// served. Skipping forward is allowed; the same status is a no-op; moving
// back is a ConflictError.
func (m *OrderManager) AdvanceItemStatus(ctx context.Context, actor Actor, itemID uint, status string) (*models.OrderItem, bool, error) {
	if err := actor.validate(); err != nil {
		return nil, false, err
	}
	want, ok := models.ItemStatusRank(status)
	if !ok {
		return nil, false, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown item status %q", status)}
	}

	db := m.db.WithContext(ctx)
	var current string
	for attempt := 0; attempt < itemAdvanceTries; attempt++ {
		var item models.OrderItem
		if err := db.First(&item, itemID).Error; err != nil {
			return nil, false, storeErr(err, "order item", idString(itemID))
		}
		if err := actor.owns("order item", idString(item.ID), item.RestaurantID); err != nil {
			return nil, false, err
		}
		current = item.Status

		var order models.Order
		if err := db.Select("id", "status").First(&order, item.OrderID).Error; err != nil {
			return nil, false, storeErr(err, "order", idString(item.OrderID))
		}
		if order.Status == models.OrderClosed {
			return nil, false, &ConflictError{
				Entity: "order item", ID: idString(itemID), Current: item.Status, Requested: status,
				Reason: "order is closed",
			}
		}

		have, _ := models.ItemStatusRank(item.Status)
		if have == want {
			return &item, false, nil
		}
		if want < have {
			return nil, false, &ConflictError{
				Entity: "order item", ID: idString(itemID), Current: item.Status, Requested: status,
				Reason: "items never move backwards",
			}
		}

		now := m.now()
		updates := map[string]interface{}{"status": status, "updated_at": now}
		cooking, _ := models.ItemStatusRank(models.ItemCooking)
		ready, _ := models.ItemStatusRank(models.ItemReady)
		if want >= cooking && item.StartedAt == nil {
			updates["started_at"] = now
			item.StartedAt = &now
		}
		if want >= ready && item.ReadyAt == nil {
			updates["ready_at"] = now
			item.ReadyAt = &now
		}
		if status == models.ItemServed {
			updates["served_at"] = now
			item.ServedAt = &now
		}

		res := db.Model(&models.OrderItem{}).
			Where("id = ? AND status = ?", itemID, item.Status).
			Updates(updates)
		if res.Error != nil {
			return nil, false, fmt.Errorf("advance item %d: %w", itemID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		from := item.Status
		item.Status = status
		item.UpdatedAt = now

		utils.InfoLogger.WithFields(logrus.Fields{
			"restaurant_id": item.RestaurantID,
			"order_id":      item.OrderID,
			"item_id":       item.ID,
			"station":       item.Station,
		}).Infof("item %s -> %s", from, status)

		if status == models.ItemReady {
			m.announceReady(ctx, actor, item)
		}
		return &item, true, nil
	}

	return nil, false, &ConflictError{
		Entity: "order item", ID: idString(itemID), Current: current, Requested: status,
		Reason: "item changed concurrently, re-fetch and retry",
	}
}

func (m *OrderManager) announceReady(ctx context.Context, actor Actor, item models.OrderItem) {
	m.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: item.RestaurantID,
		Kind:         models.EventOrderItemReady,
		EntityType:   "order_item",
		EntityID:     idString(item.ID),
		ToStatus:     item.Status,
		ActorID:      actor.ActorID,
	}, map[string]interface{}{"order_id": item.OrderID, "name": item.Name, "station": item.Station})

	var waiting int64
	err := m.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND status NOT IN ?", item.OrderID, []string{models.ItemReady, models.ItemServed}).
		Count(&waiting).Error
	if err != nil || waiting > 0 {
		return
	}
	m.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: item.RestaurantID,
		Kind:         models.EventOrderReady,
		EntityType:   "order",
		EntityID:     idString(item.OrderID),
		ActorID:      actor.ActorID,
	}, nil)
}

// StationQueue lists the unserved items of non-closed orders routed to a
// station, oldest first.
func (m *OrderManager) StationQueue(ctx context.Context, actor Actor, station string) ([]models.OrderItem, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if station != models.StationKitchen && station != models.StationBar {
		return nil, &ValidationError{Field: "station", Reason: fmt.Sprintf("unknown station %q", station)}
	}
	var items []models.OrderItem
	err := m.db.WithContext(ctx).
		Select("order_items.*").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.restaurant_id = ? AND order_items.station = ?", actor.RestaurantID, station).
		Where("order_items.status <> ? AND orders.status <> ?", models.ItemServed, models.OrderClosed).
		Order("order_items.created_at asc").
		Order("order_items.id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
