package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentQRIS         = "qris"
	PaymentBankTransfer = "bank_transfer"
)

func isPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentQRIS, PaymentBankTransfer:
		return true
	}
	return false
}

// Bill is the result of composing subtotal, discount and tip.
type Bill struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountType   string  `json:"discount_type"`
	Discount       float64 `json:"discount"`
	DiscountAmount float64 `json:"discount_amount"`
	Tip            float64 `json:"tip"`
	Payable        float64 `json:"payable"`
}

// ComputeTotal returns max(0, subtotal - discount) + tip, where a percentage
// discount is taken from the subtotal. An empty discountType means fixed.
// Out-of-range percentages and negative amounts are rejected, not clamped.
func ComputeTotal(subtotal, discount float64, discountType string, tip float64) (Bill, error) {
	if discountType == "" {
		discountType = models.DiscountFixed
	}
	switch {
	case subtotal < 0:
		return Bill{}, &ValidationError{Field: "subtotal", Reason: "must not be negative"}
	case discount < 0:
		return Bill{}, &ValidationError{Field: "discount", Reason: "must not be negative"}
	case tip < 0:
		return Bill{}, &ValidationError{Field: "tip", Reason: "must not be negative"}
	}

	var discountAmount float64
	switch discountType {
	case models.DiscountPercentage:
		if discount > 100 {
			return Bill{}, &ValidationError{Field: "discount", Reason: "percentage must be between 0 and 100"}
		}
		discountAmount = subtotal * (discount / 100)
	case models.DiscountFixed:
		discountAmount = discount
	default:
		return Bill{}, &ValidationError{Field: "discount_type", Reason: fmt.Sprintf("unknown discount type %q", discountType)}
	}

	net := subtotal - discountAmount
	if net < 0 {
		net = 0
	}
	return Bill{
		Subtotal:       utils.RoundMoney(subtotal),
		DiscountType:   discountType,
		Discount:       discount,
		DiscountAmount: utils.RoundMoney(discountAmount),
		Tip:            utils.RoundMoney(tip),
		Payable:        utils.RoundMoney(net + tip),
	}, nil
}

// CheckoutRequest carries the caller's checkout choices.
type CheckoutRequest struct {
	PaymentMethod string  `json:"payment_method"`
	DiscountType  string  `json:"discount_type"`
	Discount      float64 `json:"discount"`
	Tip           float64 `json:"tip"`
}

// CloseResult is the outcome of CloseOrder. Changed is false when the order
// had already been closed and the stored amounts are returned.
type CloseResult struct {
	Order   models.Order  `json:"order"`
	Bill    Bill          `json:"bill"`
	Table   *models.Table `json:"table,omitempty"`
	Changed bool          `json:"changed"`
}

// BillRequest is the outcome of RequestBill.
type BillRequest struct {
	Order   models.Order `json:"order"`
	Table   models.Table `json:"table"`
	Changed bool         `json:"changed"`
}

// CheckoutEngine moves orders to payment and closes them, releasing tables.
type CheckoutEngine struct {
	db     *gorm.DB
	tables *TableService
	orders *OrderManager
	events *EventRecorder
	now    func() time.Time
}

func NewCheckoutEngine(db *gorm.DB, tables *TableService, orders *OrderManager, events *EventRecorder, now func() time.Time) *CheckoutEngine {
	if now == nil {
		now = time.Now
	}
	return &CheckoutEngine{db: db, tables: tables, orders: orders, events: events, now: now}
}

// PreviewBill computes the bill of an order from its persisted items without
// changing anything.
func (c *CheckoutEngine) PreviewBill(ctx context.Context, actor Actor, orderID uint, discount float64, discountType string, tip float64) (Bill, error) {
	order, err := c.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return Bill{}, err
	}
	if order.Status == models.OrderClosed {
		return storedBill(order), nil
	}
	var subtotal float64
	for i := range order.Items {
		subtotal += order.Items[i].LineAmount()
	}
	return ComputeTotal(utils.RoundMoney(subtotal), discount, discountType, tip)
}

// RequestBill moves a table and its open order to payment_pending. An
// occupied table without an order is reported as inconsistent.
func (c *CheckoutEngine) RequestBill(ctx context.Context, actor Actor, tableID uint) (*BillRequest, error) {
	table, err := c.tables.Get(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}
	order, err := c.orders.activeOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}

	switch table.Status {
	case models.TableOccupied, models.TablePaymentPending:
	default:
		return nil, &ConflictError{
			Entity: "table", ID: idString(tableID), Current: table.Status, Requested: models.TablePaymentPending,
			Reason: "only an occupied table can request the bill",
		}
	}
	if order == nil {
		return nil, &InconsistentStateError{
			Entity: "table", ID: idString(tableID),
			Reason: fmt.Sprintf("%s without an active order", table.Status),
		}
	}

	changed := false
	if order.Status == models.OrderOpen {
		now := c.now()
		res := c.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderOpen).
			Updates(map[string]interface{}{
				"status":            models.OrderPaymentPending,
				"bill_requested_at": now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("request bill for order %d: %w", order.ID, res.Error)
		}
		if res.RowsAffected > 0 {
			changed = true
			order.Status = models.OrderPaymentPending
			order.BillRequestedAt = &now
			c.events.recordQuietly(ctx, models.FloorEvent{
				RestaurantID: order.RestaurantID,
				Kind:         models.EventOrderBillRequested,
				EntityType:   "order",
				EntityID:     idString(order.ID),
				FromStatus:   models.OrderOpen,
				ToStatus:     models.OrderPaymentPending,
				ActorID:      actor.ActorID,
			}, map[string]interface{}{"table_id": tableID})
		}
	}

	moved, err := c.tables.transition(ctx, actor, tableID, models.TablePaymentPending, TriggerRequestBill, transitionOpts{})
	if err != nil {
		return nil, err
	}
	fresh, err := c.orders.GetOrder(ctx, actor, order.ID)
	if err != nil {
		return nil, err
	}
	return &BillRequest{Order: *fresh, Table: moved.Table, Changed: changed || moved.Changed}, nil
}

// CloseOrder settles an open or payment_pending order and frees its table.
// Closing an already closed order returns the stored amounts unchanged. When
// the order closes but the table cannot be released, the result is returned
// together with an InconsistentStateError.
func (c *CheckoutEngine) CloseOrder(ctx context.Context, actor Actor, orderID uint, req CheckoutRequest) (*CloseResult, error) {
	order, err := c.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderClosed {
		return c.closedResult(ctx, actor, order)
	}
	if !isPaymentMethod(req.PaymentMethod) {
		return nil, &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown payment method %q", req.PaymentMethod)}
	}

	var (
		bill Bill
		from string
	)
	now := c.now()
	closer := actor.ActorID
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// taking the order row first keeps AppendItems out until the close
		// commits
		lock := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", orderID, []string{models.OrderOpen, models.OrderPaymentPending}).
			Update("updated_at", now)
		if lock.Error != nil {
			return lock.Error
		}
		if lock.RowsAffected == 0 {
			return errOrderNotOpen
		}
		var current models.Order
		if err := tx.Select("id", "status").First(&current, orderID).Error; err != nil {
			return err
		}
		from = current.Status

		subtotal, err := recomputeTotal(tx, orderID, now)
		if err != nil {
			return err
		}
		bill, err = ComputeTotal(subtotal, req.Discount, req.DiscountType, req.Tip)
		if err != nil {
			return err
		}
		return tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, from).
			Updates(map[string]interface{}{
				"status":          models.OrderClosed,
				"open_table_key":  nil,
				"discount_type":   bill.DiscountType,
				"discount":        bill.Discount,
				"discount_amount": bill.DiscountAmount,
				"tip":             bill.Tip,
				"payable":         bill.Payable,
				"payment_method":  req.PaymentMethod,
				"closed_by":       closer,
				"closed_at":       now,
				"updated_at":      now,
			}).Error
	})
	if errors.Is(err, errOrderNotOpen) {
		again, gerr := c.orders.GetOrder(ctx, actor, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if again.Status == models.OrderClosed {
			return c.closedResult(ctx, actor, again)
		}
		return nil, &ConflictError{Entity: "order", ID: idString(orderID), Current: again.Status, Requested: models.OrderClosed}
	}
	if err != nil {
		if IsValidation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("close order %d: %w", orderID, err)
	}

	closed, err := c.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	c.events.recordQuietly(ctx, models.FloorEvent{
		RestaurantID: closed.RestaurantID,
		Kind:         models.EventOrderClosed,
		EntityType:   "order",
		EntityID:     idString(orderID),
		FromStatus:   from,
		ToStatus:     models.OrderClosed,
		ActorID:      actor.ActorID,
	}, map[string]interface{}{
		"table_id":       closed.TableID,
		"payable":        bill.Payable,
		"payment_method": req.PaymentMethod,
	})

	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id":  closed.RestaurantID,
		"order_id":       orderID,
		"table_id":       closed.TableID,
		"payable":        utils.FormatCurrency(bill.Payable),
		"payment_method": req.PaymentMethod,
	}).Info("order closed")

	out := &CloseResult{Order: *closed, Bill: bill, Changed: true}
	released, err := c.tables.transition(ctx, actor, closed.TableID, models.TableFree, TriggerCheckout, transitionOpts{})
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"restaurant_id": closed.RestaurantID,
			"order_id":      orderID,
			"table_id":      closed.TableID,
		}).WithError(err).Error("order closed but table not released")
		return out, &InconsistentStateError{
			Entity: "table", ID: idString(closed.TableID),
			Reason: "order closed but the table was not released", Err: err,
		}
	}
	out.Table = &released.Table
	return out, nil
}

func (c *CheckoutEngine) closedResult(ctx context.Context, actor Actor, order *models.Order) (*CloseResult, error) {
	out := &CloseResult{Order: *order, Bill: storedBill(order)}
	if table, err := c.tables.Get(ctx, actor, order.TableID); err == nil {
		out.Table = table
	}
	return out, nil
}

func storedBill(order *models.Order) Bill {
	return Bill{
		Subtotal:       order.Total,
		DiscountType:   order.DiscountType,
		Discount:       order.Discount,
		DiscountAmount: order.DiscountAmount,
		Tip:            order.Tip,
		Payable:        order.Payable,
	}
}
