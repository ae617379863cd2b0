package main

import (
	"alcyxob/gym-booking/internal/api"
	"alcyxob/gym-booking/internal/config"
	"alcyxob/gym-booking/internal/events"
	"alcyxob/gym-booking/internal/repository/mongo"
	"alcyxob/gym-booking/internal/service"
	"alcyxob/gym-booking/internal/storage"
	"alcyxob/gym-booking/internal/sweeper"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// @title Gym Booking API
// @version 1.0
// @description Class booking, waitlists, check-in and progression for gyms.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	log.Println("Starting Gym Booking Server...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: could not read .env: %v", err)
	}

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.ConnectTimeout)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		for collection, err := range mongo.EnsureIndexes(ctx, appDB) {
			log.Printf("ERROR: index creation failed for %s: %v", collection, err)
		}
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	var exportStore storage.ObjectStorage
	if cfg.S3.Enabled() {
		exportStore, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
	} else {
		log.Println("WARN: s3.bucket_name not set, roster export disabled.")
	}

	// --- Initialize Redis (rate limiting) ---
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("WARN: redis ping failed, rate limiter will fail open: %v", err)
		}
		cancel()
		defer rdb.Close()
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	memberSearcher := mongo.NewMongoMemberSearcher(appDB)
	classRepo := mongo.NewMongoClassRepository(appDB)
	gymRepo := mongo.NewMongoGymRepository(appDB)
	attendanceRepo := mongo.NewMongoAttendanceRepository(appDB)
	transactor := mongo.NewTransactor(dbClient, cfg.Booking.TxMaxAttempts, cfg.Booking.TxRetryDelay)

	// --- Events ---
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	policy := service.NewMembershipPolicy(userRepo)
	var publisher events.Publisher
	switch cfg.Events.Driver {
	case config.EventsDriverAMQP:
		amqpPublisher := events.NewAMQPPublisher(cfg.Events.AMQPURL)
		defer amqpPublisher.Close()
		publisher = amqpPublisher

		consumer := events.NewAMQPConsumer(cfg.Events.AMQPURL, cfg.Events.Prefetch, policy.HandleFirstClassAttended)
		go func() {
			if err := consumer.Run(appCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ERROR: event consumer stopped: %v", err)
			}
		}()
		log.Printf("INFO: events via AMQP queue %s", events.FirstClassAttendedQueue)
	default:
		bus := events.NewInlineBus()
		bus.Subscribe(policy.HandleFirstClassAttended)
		publisher = bus
		log.Println("INFO: events delivered in-process")
	}

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	bookingService := service.NewBookingService(transactor, attendanceRepo, classRepo, userRepo)
	checkInService := service.NewCheckInService(transactor, attendanceRepo, userRepo, gymRepo, publisher)
	memberService := service.NewMemberService(memberSearcher)
	exportService := service.NewRosterExportService(attendanceRepo, classRepo, exportStore, cfg.S3.ExportExpiry)

	// --- Waitlist sweeper ---
	var sweep *sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		sweep = sweeper.New(attendanceRepo, classRepo, bookingService, cfg.Sweeper.Timeout)
		if err := sweep.Start(cfg.Sweeper.Schedule); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
	}

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	var rateLimiter gin.HandlerFunc
	if rdb != nil {
		rateLimiter = api.RateLimitMiddleware(cfg.RateLimit, rdb)
	}
	api.SetupRoutes(router, cfg.JWT.Secret, rateLimiter, authService, bookingService, checkInService, memberService, exportService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}
	if sweep != nil {
		select {
		case <-sweep.Stop().Done():
		case <-ctxShutdown.Done():
			log.Println("WARN: waitlist sweep still running at shutdown")
		}
	}
	stopApp()

	log.Println("Server exiting.")
}
