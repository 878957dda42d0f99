package database

import (
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const DemoPassword = "password123"

type demoTable struct {
	number   string
	area     string
	capacity int
}

type demoMenuItem struct {
	name     string
	category string
	price    float64
	station  string
}

var demoTables = []demoTable{
	{"T1", "main", 2},
	{"T2", "main", 2},
	{"T3", "main", 4},
	{"T4", "main", 4},
	{"T5", "terrace", 6},
	{"T6", "terrace", 8},
}

var demoMenu = []demoMenuItem{
	{"Burger", "Food", 12.50, models.StationKitchen},
	{"Nasi Goreng", "Food", 9.75, models.StationKitchen},
	{"Caesar Salad", "Food", 8.00, models.StationKitchen},
	{"Soda", "Drinks", 3.00, models.StationBar},
	{"Iced Tea", "Drinks", 2.50, models.StationBar},
	{"Espresso", "Drinks", 2.75, models.StationBar},
}

var demoRoles = []string{
	models.RoleManager,
	models.RoleHost,
	models.RoleWaiter,
	models.RoleKitchen,
	models.RoleBar,
}

// SeedDemo fills an empty restaurant with tables, a menu and one user per
// role (email "<role>@<restaurant>.local", password DemoPassword). A
// restaurant that already has tables is left alone.
func SeedDemo(db *gorm.DB, restaurantID string) error {
	var count int64
	if err := db.Model(&models.Table{}).Where("restaurant_id = ?", restaurantID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		utils.InfoLogger.Printf("Restaurant %s already seeded", restaurantID)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, t := range demoTables {
			if err := tx.Create(&models.Table{
				RestaurantID: restaurantID,
				AreaID:       t.area,
				TableNumber:  t.number,
				Capacity:     t.capacity,
				Status:       models.TableFree,
			}).Error; err != nil {
				return err
			}
		}
		for _, m := range demoMenu {
			if err := tx.Create(&models.MenuItem{
				RestaurantID: restaurantID,
				Name:         m.name,
				Category:     m.category,
				Price:        m.price,
				Station:      m.station,
				Available:    true,
			}).Error; err != nil {
				return err
			}
		}
		for _, role := range demoRoles {
			if err := tx.Create(&models.User{
				RestaurantID: restaurantID,
				Name:         fmt.Sprintf("Demo %s", role),
				Email:        DemoEmail(role, restaurantID),
				Password:     string(hash),
				Role:         role,
			}).Error; err != nil {
				return err
			}
		}
		utils.InfoLogger.Printf("Seeded demo restaurant %s", restaurantID)
		return nil
	})
}

// DemoEmail is the login of the seeded user of a role.
func DemoEmail(role, restaurantID string) string {
	return fmt.Sprintf("%s@%s.local", role, strings.ToLower(restaurantID))
}
