package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/database"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/notify"
	"github.com/yeremiapane/restaurant-floor/router"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel, cfg.LogJSON)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed.")

	if cfg.SeedDemo {
		if err := database.SeedDemo(db, cfg.SeedRestaurant); err != nil {
			utils.ErrorLogger.WithError(err).Error("demo seed failed")
		}
	}

	floor := services.NewFloor(db, services.WithHoldWindow(cfg.ReservationHoldWindow))

	hub := kds.NewHub()
	sinks := notify.NewFanout(notify.LogSink{}, hub)
	addSinks(sinks, cfg)
	defer sinks.Close()

	relay := services.NewEventRelay(db, sinks, cfg.RelayInterval)
	relay.Start()
	defer relay.Stop()

	zombies := services.NewZombieMonitor(db, floor.Events, cfg.ZombieScanInterval, cfg.ZombieGrace, nil)
	zombies.Start()
	defer zombies.Stop()

	r := router.SetupRouter(router.Deps{
		DB:     db,
		Floor:  floor,
		Hub:    hub,
		Issuer: utils.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Config: cfg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.WithError(err).Error("server shutdown")
	}
}

// addSinks connects the optional brokers. A broker that cannot be reached is
// logged and skipped; the floor works without any of them.
func addSinks(f *notify.Fanout, cfg config.Config) {
	if cfg.RedisAddr != "" {
		if s, err := notify.NewRedisSink(cfg.RedisAddr, cfg.RedisChannel); err != nil {
			utils.ErrorLogger.WithField("addr", cfg.RedisAddr).WithError(err).Warn("redis sink disabled")
		} else {
			f.Add(s)
		}
	}
	if cfg.AMQPURL != "" {
		if s, err := notify.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
			utils.ErrorLogger.WithError(err).Warn("amqp sink disabled")
		} else {
			f.Add(s)
		}
	}
	if cfg.NATSURL != "" {
		if s, err := notify.NewNATSSink(cfg.NATSURL, cfg.NATSSubject); err != nil {
			utils.ErrorLogger.WithError(err).Warn("nats sink disabled")
		} else {
			f.Add(s)
		}
	}
	utils.InfoLogger.WithFields(logrus.Fields{"sinks": f.Len()}).Info("event sinks ready")
}
