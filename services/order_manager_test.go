package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/models"
)

func TestOpenOrCreateOrderIsIdempotent(t *testing.T) {
	f, db := setupFloor(t)
	table := seedTable(t, db, restTest, "T1", 4, models.TableOccupied)

	first, created, err := f.Orders.OpenOrCreateOrder(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.OrderOpen, first.Status)
	assert.Zero(t, first.Total)

	second, created, err := f.Orders.OpenOrCreateOrder(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var n int64
	db.Model(&models.Order{}).Where("table_id = ?", table.ID).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestOpenOrCreateOrderReturnsItems(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 2})

	again, created, err := f.Orders.OpenOrCreateOrder(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, order.ID, again.ID)
	assert.Equal(t, 25.00, again.Total)
	require.Len(t, again.Items, 1)
	assert.Equal(t, "Burger", again.Items[0].Name)
}

func TestOneOpenOrderPerTableIsEnforcedByStore(t *testing.T) {
	_, db := setupFloor(t)
	table := seedTable(t, db, restTest, "T1", 4, models.TableOccupied)

	key := table.ID
	require.NoError(t, db.Create(&models.Order{RestaurantID: restTest, TableID: table.ID, Status: models.OrderOpen, OpenTableKey: &key}).Error)
	dup := key
	err := db.Create(&models.Order{RestaurantID: restTest, TableID: table.ID, Status: models.OrderOpen, OpenTableKey: &dup}).Error
	assert.Error(t, err)
}

func TestOpenOrderNeedsSeatedTable(t *testing.T) {
	f, db := setupFloor(t)
	free := seedTable(t, db, restTest, "T1", 4, models.TableFree)
	pending := seedTable(t, db, restTest, "T2", 4, models.TablePaymentPending)

	_, _, err := f.Orders.OpenOrCreateOrder(ctx, waiter, free.ID)
	assert.True(t, IsConflict(err))

	_, _, err = f.Orders.OpenOrCreateOrder(ctx, waiter, pending.ID)
	assert.True(t, IsInconsistent(err))
}

func TestAppendItemsRecomputesTotal(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 2})
	assert.Equal(t, 25.00, order.Total)

	order, added, err := f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, models.StationBar, added[0].Station)
	assert.Equal(t, models.ItemPending, added[0].Status)
	assert.Equal(t, 28.00, order.Total)
	assert.Len(t, order.Items, 2)
}

// Any sequence of sends, including retried ones, leaves total equal to the
// sum of persisted lines.
func TestAppendItemsRetryDoesNotDoubleCount(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db)

	send := []ItemRequest{{MenuItemID: burger.ID, Quantity: 1}, {MenuItemID: soda.ID, Quantity: 3}}
	for i := 0; i < 3; i++ {
		_, _, err := f.Orders.AppendItems(ctx, waiter, order.ID, "send-1", send)
		require.NoError(t, err)
	}
	_, _, err := f.Orders.AppendItems(ctx, waiter, order.ID, "send-2", []ItemRequest{{MenuItemID: burger.ID, Quantity: 1}})
	require.NoError(t, err)

	got, err := f.Orders.GetOrder(ctx, waiter, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)

	var sum float64
	for _, it := range got.Items {
		sum += it.LineAmount()
	}
	assert.Equal(t, sum, got.Total)
	assert.Equal(t, 34.00, got.Total)

	// the same menu item in another send stays a separate line
	assert.Equal(t, burger.ID, got.Items[0].MenuItemID)
	assert.Equal(t, burger.ID, got.Items[2].MenuItemID)
	assert.NotEqual(t, got.Items[0].SendKey, got.Items[2].SendKey)
}

func TestAppendItemsPartialRetryAddsMissingLines(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db)

	// line 1 landed before the failure
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID: order.ID, RestaurantID: restTest, MenuItemID: burger.ID, Name: "Burger",
		Quantity: 1, UnitPrice: 12.50, Station: models.StationKitchen, Status: models.ItemPending,
		SendKey: "send-x", LineNo: 1,
	}).Error)

	got, added, err := f.Orders.AppendItems(ctx, waiter, order.ID, "send-x", []ItemRequest{
		{MenuItemID: burger.ID, Quantity: 1},
		{MenuItemID: soda.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, 2, added[0].LineNo)
	assert.Equal(t, 15.50, got.Total)
}

func TestAppendItemsCapturesPrice(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})

	require.NoError(t, db.Model(burger).Update("price", 20.00).Error)
	total, err := f.Orders.RecomputeTotal(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.50, total)
}

func TestAppendItemsValidation(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	lunaItem := seedMenuItem(t, db, cafeLuna, "Latte", 4.00, models.StationBar)
	gone := seedMenuItem(t, db, restTest, "Seasonal", 9.00, models.StationKitchen)
	require.NoError(t, db.Model(gone).Update("available", false).Error)
	_, order := seatedOrder(t, f, db)

	_, _, err := f.Orders.AppendItems(ctx, waiter, order.ID, "", nil)
	assert.True(t, IsValidation(err))

	_, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: burger.ID, Quantity: 0}})
	assert.True(t, IsValidation(err))

	_, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: 999, Quantity: 1}})
	assert.True(t, IsNotFound(err))

	_, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: lunaItem.ID, Quantity: 1}})
	assert.True(t, IsCrossTenant(err))

	_, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{
		{MenuItemID: burger.ID, Quantity: 1},
		{MenuItemID: gone.ID, Quantity: 1},
	})
	assert.True(t, IsValidation(err))

	// nothing from the rejected sends was written
	got, err := f.Orders.GetOrder(ctx, waiter, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Zero(t, got.Total)
}

func TestAppendItemsRejectsNonOpenOrder(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})

	_, err := f.Checkout.RequestBill(ctx, waiter, table.ID)
	require.NoError(t, err)

	_, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: burger.ID, Quantity: 1}})
	assert.True(t, IsConflict(err))
}

func TestAdvanceItemStatusIsMonotonic(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})
	itemID := order.Items[0].ID

	item, changed, err := f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, models.ItemCooking)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotNil(t, item.StartedAt)

	_, changed, err = f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, models.ItemCooking)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, models.ItemPending)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, models.ItemCooking, conflict.Current)

	_, _, err = f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, "burnt")
	assert.True(t, IsValidation(err))

	item, _, err = f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, models.ItemReady)
	require.NoError(t, err)
	assert.NotNil(t, item.ReadyAt)

	_, _, err = f.Orders.AdvanceItemStatus(ctx, kitchen, itemID, models.ItemCooking)
	assert.True(t, IsConflict(err))

	var stored models.OrderItem
	require.NoError(t, db.First(&stored, itemID).Error)
	assert.Equal(t, models.ItemReady, stored.Status)
}

func TestAdvanceItemStatusSkipForward(t *testing.T) {
	f, db := setupFloor(t)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: soda.ID, Quantity: 1})

	item, changed, err := f.Orders.AdvanceItemStatus(ctx, waiter, order.Items[0].ID, models.ItemServed)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotNil(t, item.StartedAt)
	assert.NotNil(t, item.ReadyAt)
	assert.NotNil(t, item.ServedAt)
}

func TestOrderReadyEventWhenAllItemsReady(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db,
		ItemRequest{MenuItemID: burger.ID, Quantity: 1},
		ItemRequest{MenuItemID: soda.ID, Quantity: 1},
	)
	orderID := idString(order.ID)

	_, _, err := f.Orders.AdvanceItemStatus(ctx, kitchen, order.Items[0].ID, models.ItemReady)
	require.NoError(t, err)
	assert.EqualValues(t, 0, countEvents(t, db, models.EventOrderReady, orderID))

	_, _, err = f.Orders.AdvanceItemStatus(ctx, kitchen, order.Items[1].ID, models.ItemReady)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countEvents(t, db, models.EventOrderReady, orderID))
}

func TestStationQueue(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	_, order := seatedOrder(t, f, db,
		ItemRequest{MenuItemID: burger.ID, Quantity: 1},
		ItemRequest{MenuItemID: burger.ID, Quantity: 2},
		ItemRequest{MenuItemID: soda.ID, Quantity: 1},
	)

	queue, err := f.Orders.StationQueue(ctx, kitchen, models.StationKitchen)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	_, _, err = f.Orders.AdvanceItemStatus(ctx, waiter, order.Items[0].ID, models.ItemServed)
	require.NoError(t, err)

	queue, err = f.Orders.StationQueue(ctx, kitchen, models.StationKitchen)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, order.Items[1].ID, queue[0].ID)

	bar, err := f.Orders.StationQueue(ctx, kitchen, models.StationBar)
	require.NoError(t, err)
	assert.Len(t, bar, 1)

	_, err = f.Orders.StationQueue(ctx, kitchen, "grill")
	assert.True(t, IsValidation(err))
}

func TestActiveOrderForTable(t *testing.T) {
	f, db := setupFloor(t)
	table, order := seatedOrder(t, f, db)

	got, err := f.Orders.ActiveOrderForTable(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	empty := seedTable(t, db, restTest, "T2", 2, models.TableFree)
	_, err = f.Orders.ActiveOrderForTable(ctx, waiter, empty.ID)
	assert.True(t, IsNotFound(err))
}
