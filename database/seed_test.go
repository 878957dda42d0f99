package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSeedDemoIsIdempotent(t *testing.T) {
	utils.SilenceLoggers()
	db, err := gorm.Open(sqlite.Open("file:seedtest?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, SeedDemo(db, "DEMO"))
	require.NoError(t, SeedDemo(db, "DEMO"))

	count := func(model interface{}) int64 {
		var n int64
		require.NoError(t, db.Model(model).Where("restaurant_id = ?", "DEMO").Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(len(demoTables)), count(&models.Table{}))
	assert.Equal(t, int64(len(demoMenu)), count(&models.MenuItem{}))
	assert.Equal(t, int64(len(demoRoles)), count(&models.User{}))

	var host models.User
	require.NoError(t, db.Where("email = ?", DemoEmail(models.RoleHost, "DEMO")).First(&host).Error)
	assert.Equal(t, "host@demo.local", host.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(host.Password), []byte(DemoPassword)))

	var tables []models.Table
	require.NoError(t, db.Where("restaurant_id = ?", "DEMO").Find(&tables).Error)
	for _, table := range tables {
		assert.Equal(t, models.TableFree, table.Status)
	}
}
