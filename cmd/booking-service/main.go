package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-railbooking/internal/auth"
	"ms-railbooking/internal/booking"
	"ms-railbooking/internal/booking/api"
	"ms-railbooking/internal/booking/db"
	"ms-railbooking/internal/booking/kafka"
	rediscache "ms-railbooking/internal/booking/redis"
	"ms-railbooking/internal/catalog"
	"ms-railbooking/internal/config"
	"ms-railbooking/internal/database/migrations"
	"ms-railbooking/internal/logger"
	"ms-railbooking/internal/tickets/qr"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- Postgres ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	log.Info("DATABASE", "Postgres connection successful")

	// --- Schema ---
	if cfg.Database.MigrationsDir != "" {
		runner := migrations.NewRunner(bunDB, cfg.Database.MigrationsDir)
		if err := runner.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("migrations failed: %v", err))
		}
	} else if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("schema bootstrap failed: %v", err))
		}
	}

	store := &db.DB{Bun: bunDB}

	// --- Train catalog ---
	records, err := store.TrainRecords(ctx)
	if err != nil {
		log.Fatal("CATALOG", fmt.Sprintf("failed to load trains: %v", err))
	}
	cat, err := catalog.New(records)
	if err != nil {
		log.Fatal("CATALOG", fmt.Sprintf("invalid train record: %v", err))
	}
	log.Info("CATALOG", fmt.Sprintf("loaded %d train(s)", len(cat.GetAllTrains())))

	// --- Redis (advisory availability cache) ---
	var cache booking.AvailabilityCache
	redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("CACHE", fmt.Sprintf("redis unavailable, availability cache disabled: %v", err))
	} else {
		cache = rediscache.NewCache(redisClient, cfg.Redis.AvailabilityTTL)
		log.Info("CACHE", "redis connection successful")
	}

	// --- Kafka (best-effort event stream) ---
	var events booking.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketBooked, cfg.Kafka.Topics.TicketCancelled)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", fmt.Sprintf("publishing booking events to %v", cfg.Kafka.Brokers))
	}

	// --- Booking engine (rebuilds seat occupancy from the store) ---
	engine, err := booking.NewEngine(ctx, store, cat, cache, events, log)
	if err != nil {
		log.Fatal("BOOKING", fmt.Sprintf("engine startup failed: %v", err))
	}

	handler := &api.Handler{
		Engine: engine,
		Cache:  cache,
		QR:     qr.NewGenerator(cfg.Auth.JWTSecret),
		Logger: log,
	}

	// --- Router ---
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/trains", handler.SearchTrains)
		r.Get("/trains/{trainNumber}/availability", handler.GetAvailability)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth.JWTSecret))
			r.Post("/bookings", handler.CreateBooking)
			r.Get("/bookings", handler.ListBookings)
			r.Get("/bookings/history", handler.ListHistory)
			r.Get("/bookings/{pnr}", handler.GetBooking)
			r.Delete("/bookings/{pnr}", handler.CancelBooking)
			r.Get("/tickets/{pnr}/qr", handler.TicketQR)
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Booking service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("SERVER", "shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("forced shutdown: %v", err))
	}
	log.Info("SERVER", "booking service stopped")
}
