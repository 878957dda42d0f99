package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/database"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/router"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	demo  = "DEMO"
	other = "OTHER"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type errorBody struct {
	Type                 string          `json:"type"`
	Detail               json.RawMessage `json:"detail"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	Recovery             string          `json:"recovery"`
	Result               json.RawMessage `json:"result"`
}

type harness struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	issuer *utils.TokenIssuer
}

// newHarness serves the full router over an in-memory store seeded with two
// demo restaurants.
func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedDemo(db, demo))
	require.NoError(t, database.SeedDemo(db, other))

	issuer := utils.NewTokenIssuer("test-secret", time.Hour)
	r := router.SetupRouter(router.Deps{
		DB:     db,
		Floor:  services.NewFloor(db),
		Hub:    kds.NewHub(),
		Issuer: issuer,
		Config: config.Config{
			RateLimitRPS:      1000,
			RateLimitBurst:    1000,
			CORSOrigins:       []string{"http://localhost:5173"},
			OrderPollInterval: 15 * time.Second,
			HostPollInterval:  30 * time.Second,
		},
	})
	return &harness{t: t, db: db, router: r, issuer: issuer}
}

// token issues a token for the seeded user of role in restaurantID.
func (h *harness) token(role, restaurantID string) string {
	h.t.Helper()
	var user models.User
	require.NoError(h.t, h.db.Where("restaurant_id = ? AND role = ?", restaurantID, role).First(&user).Error)
	tok, err := h.issuer.GenerateToken(user.ID, restaurantID, role)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, token string, body interface{}) (int, envelope) {
	h.t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (h *harness) tableID(restaurantID, number string) uint {
	h.t.Helper()
	var table models.Table
	require.NoError(h.t, h.db.Where("restaurant_id = ? AND table_number = ?", restaurantID, number).First(&table).Error)
	return table.ID
}

func (h *harness) menuID(restaurantID, name string) uint {
	h.t.Helper()
	var item models.MenuItem
	require.NoError(h.t, h.db.Where("restaurant_id = ? AND name = ?", restaurantID, name).First(&item).Error)
	return item.ID
}

func (h *harness) tableStatus(id uint) string {
	h.t.Helper()
	var table models.Table
	require.NoError(h.t, h.db.First(&table, id).Error)
	return table.Status
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}
