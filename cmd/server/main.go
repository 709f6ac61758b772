package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/eduflow/billing-engine/internal/config"
	"github.com/eduflow/billing-engine/internal/handler"
	"github.com/eduflow/billing-engine/internal/notifier"
	"github.com/eduflow/billing-engine/internal/repository"
	"github.com/eduflow/billing-engine/internal/service"
	"github.com/eduflow/billing-engine/pkg/response"
)

func main() {
	// Load .env before config so local overrides win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Repositories
	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Notification dispatch
	dispatcher := notifier.NewDispatcher(
		notificationRepo,
		userRepo,
		redisClient,
		buildTransport(cfg),
		cfg.Billing.DedupWindow,
	)

	// Service and handlers
	billingService := service.NewBillingService(paymentRepo, enrollmentRepo, courseRepo, userRepo, dispatcher, cfg)
	billingHandler := handler.NewBillingHandler(billingService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	router := setupRoutes(billingHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func buildTransport(cfg *config.Config) notifier.Transport {
	if cfg.Notifier.SendgridAPIKey != "" {
		return notifier.NewSendgridTransport(cfg.Notifier.SendgridAPIKey, cfg.Notifier.FromName, cfg.Notifier.FromEmail)
	}
	return notifier.NewLogTransport()
}

func setupRoutes(billingHandler *handler.BillingHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware, response.CORSMiddleware, response.JSONMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/enrollments", billingHandler.Enroll).Methods("POST")
	api.HandleFunc("/payments", billingHandler.CreatePayment).Methods("POST")
	api.HandleFunc("/payments", billingHandler.ListPayments).Methods("GET")
	api.HandleFunc("/payments/stats", billingHandler.PaymentStats).Methods("GET")
	api.HandleFunc("/payments/bulk", billingHandler.BulkPaymentAction).Methods("POST")
	api.HandleFunc("/payments/{paymentId}", billingHandler.UpdatePayment).Methods("PATCH")
	api.HandleFunc("/payments/{paymentId}", billingHandler.DeletePayment).Methods("DELETE")
	api.HandleFunc("/access-control", billingHandler.AccessControl).Methods("POST")

	return router
}
