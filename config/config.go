// Package config loads runtime settings from the environment, optionally
// primed from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver string // "sqlite" or "mysql"
	DBDSN    string

	JWTSecret string
	TokenTTL  time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string

	// Advertised to polling clients; the server never depends on them.
	OrderPollInterval time.Duration
	HostPollInterval  time.Duration

	RelayInterval         time.Duration
	ZombieScanInterval    time.Duration
	ZombieGrace           time.Duration
	ReservationHoldWindow time.Duration

	RedisAddr    string
	RedisChannel string
	AMQPURL      string
	AMQPExchange string
	NATSURL      string
	NATSSubject  string

	SeedDemo       bool
	SeedRestaurant string
	LogLevel       string
	LogJSON        bool
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Debug(".env file not found, using process environment")
	}

	return Config{
		Port:    getString("PORT", "8080"),
		GinMode: getString("GIN_MODE", "debug"),

		DBDriver: strings.ToLower(getString("DB_DRIVER", "sqlite")),
		DBDSN:    getString("DB_DSN", "floor.db"),

		JWTSecret: getString("JWT_SECRET", "dev-floor-secret"),
		TokenTTL:  time.Duration(getInt("TOKEN_TTL_HOURS", 12)) * time.Hour,

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),
		CORSOrigins:    getList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		OrderPollInterval: time.Duration(getInt("ORDER_POLL_SECONDS", 15)) * time.Second,
		HostPollInterval:  time.Duration(getInt("HOST_POLL_SECONDS", 30)) * time.Second,

		RelayInterval:         time.Duration(getInt("RELAY_INTERVAL_MS", 1000)) * time.Millisecond,
		ZombieScanInterval:    time.Duration(getInt("ZOMBIE_SCAN_SECONDS", 60)) * time.Second,
		ZombieGrace:           time.Duration(getInt("ZOMBIE_GRACE_MINUTES", 10)) * time.Minute,
		ReservationHoldWindow: time.Duration(getInt("RESERVATION_HOLD_MINUTES", 90)) * time.Minute,

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisChannel: getString("REDIS_CHANNEL", "floor.events"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getString("AMQP_EXCHANGE", "floor.events"),
		NATSURL:      os.Getenv("NATS_URL"),
		NATSSubject:  getString("NATS_SUBJECT", "floor.events"),

		SeedDemo:       getBool("SEED_DEMO", false),
		SeedRestaurant: getString("SEED_RESTAURANT", "DEMO"),
		LogLevel:       getString("LOG_LEVEL", "info"),
		LogJSON:        getBool("LOG_JSON", false),
	}
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getInt(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		utils.ErrorLogger.Warnf("invalid int for %s: %q, using %d", key, s, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid number for %s: %q, using %v", key, s, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

func getList(key string, def []string) []string {
	s, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
