package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/models"
)

func TestComputeTotal(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		discount float64
		kind     string
		tip      float64
		payable  float64
		amount   float64
	}{
		{"no adjustments", 28, 0, "", 0, 28, 0},
		{"percentage and tip", 28, 10, models.DiscountPercentage, 5, 30.20, 2.80},
		{"fixed discount", 40, 7.5, models.DiscountFixed, 2, 34.50, 7.5},
		{"fixed larger than subtotal", 10, 15, models.DiscountFixed, 3, 3, 15},
		{"full percentage", 50, 100, models.DiscountPercentage, 4, 4, 50},
		{"rounding", 19.99, 10, models.DiscountPercentage, 0, 17.99, 2.00},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bill, err := ComputeTotal(tc.subtotal, tc.discount, tc.kind, tc.tip)
			require.NoError(t, err)
			assert.InDelta(t, tc.payable, bill.Payable, 0.001)
			assert.InDelta(t, tc.amount, bill.DiscountAmount, 0.001)
		})
	}
}

func TestComputeTotalRejectsBadInput(t *testing.T) {
	_, err := ComputeTotal(20, 120, models.DiscountPercentage, 0)
	assert.True(t, IsValidation(err))

	_, err = ComputeTotal(20, -1, models.DiscountFixed, 0)
	assert.True(t, IsValidation(err))

	_, err = ComputeTotal(20, 0, "", -2)
	assert.True(t, IsValidation(err))

	_, err = ComputeTotal(20, 5, "voucher", 0)
	assert.True(t, IsValidation(err))
}

// Burger x2 at 12.50, then a soda at 3.00; closing with 10% off and a tip of
// 5 charges 30.20 and frees the table.
func TestCloseOrderSettlesAndFreesTable(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	soda := seedMenuItem(t, db, restTest, "Soda", 3.00, models.StationBar)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 2})
	assert.Equal(t, 25.00, order.Total)

	order, _, err := f.Orders.AppendItems(ctx, waiter, order.ID, "", []ItemRequest{{MenuItemID: soda.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 28.00, order.Total)

	res, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{
		PaymentMethod: PaymentCash,
		DiscountType:  models.DiscountPercentage,
		Discount:      10,
		Tip:           5,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.InDelta(t, 30.20, res.Bill.Payable, 0.001)
	assert.Equal(t, models.OrderClosed, res.Order.Status)
	assert.Nil(t, res.Order.OpenTableKey)
	require.NotNil(t, res.Table)
	assert.Equal(t, models.TableFree, res.Table.Status)
	assert.Equal(t, models.TableFree, reloadTable(t, db, table.ID).Status)

	var stored models.Order
	require.NoError(t, db.First(&stored, order.ID).Error)
	assert.InDelta(t, 30.20, stored.Payable, 0.001)
	assert.Equal(t, 28.00, stored.Total)
	assert.Equal(t, PaymentCash, stored.PaymentMethod)
	require.NotNil(t, stored.ClosedBy)
	assert.Equal(t, waiter.ActorID, *stored.ClosedBy)
}

// A second close returns the stored payable, even with different inputs.
func TestCloseOrderTwiceReturnsStoredAmount(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 2})

	first, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: PaymentCard, Tip: 2})
	require.NoError(t, err)

	second, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: PaymentCash, Discount: 50, DiscountType: models.DiscountPercentage})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Bill.Payable, second.Bill.Payable)
	assert.Equal(t, 27.00, second.Bill.Payable)
	assert.Equal(t, PaymentCard, second.Order.PaymentMethod)
	assert.Equal(t, 25.00, second.Order.Total)
	assert.EqualValues(t, 1, countEvents(t, db, models.EventOrderClosed, idString(order.ID)))
}

func TestCloseOrderValidation(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})

	_, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: "iou"})
	assert.True(t, IsValidation(err))

	_, err = f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: PaymentCash, Discount: 101, DiscountType: models.DiscountPercentage})
	assert.True(t, IsValidation(err))

	assert.Equal(t, models.TableOccupied, reloadTable(t, db, table.ID).Status)
	got, err := f.Orders.GetOrder(ctx, waiter, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, got.Status)
}

func TestRequestBillThenClose(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})

	req, err := f.Checkout.RequestBill(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.True(t, req.Changed)
	assert.Equal(t, models.OrderPaymentPending, req.Order.Status)
	assert.NotNil(t, req.Order.BillRequestedAt)
	assert.Equal(t, models.TablePaymentPending, req.Table.Status)

	again, err := f.Checkout.RequestBill(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.False(t, again.Changed)

	res, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: PaymentQRIS})
	require.NoError(t, err)
	assert.Equal(t, 12.50, res.Bill.Payable)
	assert.Equal(t, models.TableFree, reloadTable(t, db, table.ID).Status)

	// the table can take a new party and a fresh order
	_, err = f.Reservations.Assign(ctx, host, SeatingTarget{PartySize: 2}, table.ID, false)
	require.NoError(t, err)
	next, created, err := f.Orders.OpenOrCreateOrder(ctx, waiter, table.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, order.ID, next.ID)
}

// T3 is occupied with no order: requesting the bill reports the
// inconsistency and a forced release frees it with an override event.
func TestZombieTableNeedsForcedRelease(t *testing.T) {
	f, db := setupFloor(t)
	t3 := seedTable(t, db, restTest, "T3", 4, models.TableOccupied)

	_, err := f.Checkout.RequestBill(ctx, waiter, t3.ID)
	require.Error(t, err)
	assert.True(t, IsInconsistent(err))
	assert.Equal(t, models.TableOccupied, reloadTable(t, db, t3.ID).Status)

	res, err := f.Tables.ForceRelease(ctx, manager, t3.ID, "no order found")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.TableFree, reloadTable(t, db, t3.ID).Status)

	history, err := f.Events.History(ctx, manager, "table", idString(t3.ID))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.EventTableForceReleased, history[0].Kind)
	assert.True(t, history[0].Override)
}

func TestRequestBillOnFreeTableConflicts(t *testing.T) {
	f, db := setupFloor(t)
	table := seedTable(t, db, restTest, "T1", 4, models.TableFree)

	_, err := f.Checkout.RequestBill(ctx, waiter, table.ID)
	assert.True(t, IsConflict(err))
}

func TestCloseOrderReportsUnreleasedTable(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	table, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 1})

	// someone moved the table where checkout cannot release it
	require.NoError(t, db.Model(table).Update("status", models.TableMaintenance).Error)

	res, err := f.Checkout.CloseOrder(ctx, waiter, order.ID, CheckoutRequest{PaymentMethod: PaymentCash})
	require.Error(t, err)
	assert.True(t, IsInconsistent(err))
	require.NotNil(t, res)
	assert.Equal(t, models.OrderClosed, res.Order.Status)
	assert.Equal(t, models.TableMaintenance, reloadTable(t, db, table.ID).Status)
}

func TestPreviewBillChangesNothing(t *testing.T) {
	f, db := setupFloor(t)
	burger := seedMenuItem(t, db, restTest, "Burger", 12.50, models.StationKitchen)
	_, order := seatedOrder(t, f, db, ItemRequest{MenuItemID: burger.ID, Quantity: 2})

	bill, err := f.Checkout.PreviewBill(ctx, waiter, order.ID, 5, models.DiscountFixed, 1)
	require.NoError(t, err)
	assert.Equal(t, 25.00, bill.Subtotal)
	assert.Equal(t, 21.00, bill.Payable)

	got, err := f.Orders.GetOrder(ctx, waiter, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, got.Status)
	assert.Zero(t, got.Payable)
}

func TestCloseOrderCrossTenant(t *testing.T) {
	f, db := setupFloor(t)
	_, order := seatedOrder(t, f, db)

	_, err := f.Checkout.CloseOrder(ctx, lunaHost, order.ID, CheckoutRequest{PaymentMethod: PaymentCash})
	assert.True(t, IsCrossTenant(err))
}
