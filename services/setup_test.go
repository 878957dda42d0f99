package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/database"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	restTest = "REST-TEST"
	cafeLuna = "CAFE-LUNA"
)

var (
	ctx      = context.Background()
	testNow  = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	host     = Actor{RestaurantID: restTest, ActorID: 1, Role: models.RoleHost}
	waiter   = Actor{RestaurantID: restTest, ActorID: 2, Role: models.RoleWaiter}
	kitchen  = Actor{RestaurantID: restTest, ActorID: 3, Role: models.RoleKitchen}
	manager  = Actor{RestaurantID: restTest, ActorID: 4, Role: models.RoleManager}
	lunaHost = Actor{RestaurantID: cafeLuna, ActorID: 9, Role: models.RoleHost}
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.SilenceLoggers()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func setupFloor(t *testing.T, opts ...FloorOption) (*Floor, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	opts = append([]FloorOption{WithClock(func() time.Time { return testNow })}, opts...)
	return NewFloor(db, opts...), db
}

func seedTable(t *testing.T, db *gorm.DB, restaurantID, number string, capacity int, status string) *models.Table {
	t.Helper()
	table := &models.Table{
		RestaurantID: restaurantID,
		TableNumber:  number,
		Capacity:     capacity,
		Status:       status,
	}
	require.NoError(t, db.Create(table).Error)
	return table
}

func seedMenuItem(t *testing.T, db *gorm.DB, restaurantID, name string, price float64, station string) *models.MenuItem {
	t.Helper()
	item := &models.MenuItem{
		RestaurantID: restaurantID,
		Name:         name,
		Price:        price,
		Station:      station,
		Available:    true,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func reloadTable(t *testing.T, db *gorm.DB, id uint) models.Table {
	t.Helper()
	var table models.Table
	require.NoError(t, db.First(&table, id).Error)
	return table
}

func reloadReservation(t *testing.T, db *gorm.DB, id string) models.Reservation {
	t.Helper()
	var res models.Reservation
	require.NoError(t, db.Where("id = ?", id).First(&res).Error)
	return res
}

func countEvents(t *testing.T, db *gorm.DB, kind, entityID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.FloorEvent{}).Where("kind = ? AND entity_id = ?", kind, entityID).Count(&n).Error)
	return n
}

// seatedOrder returns an occupied table with an open order holding items.
func seatedOrder(t *testing.T, f *Floor, db *gorm.DB, items ...ItemRequest) (*models.Table, *models.Order) {
	t.Helper()
	table := seedTable(t, db, restTest, "T9", 4, models.TableOccupied)
	order, _, err := f.Orders.OpenOrCreateOrder(ctx, waiter, table.ID)
	require.NoError(t, err)
	if len(items) > 0 {
		order, _, err = f.Orders.AppendItems(ctx, waiter, order.ID, "", items)
		require.NoError(t, err)
	}
	return table, order
}
