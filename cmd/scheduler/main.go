package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/eduflow/billing-engine/internal/config"
	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/notifier"
	"github.com/eduflow/billing-engine/internal/repository"
	"github.com/eduflow/billing-engine/internal/service"
)

const sweepTimeout = 10 * time.Minute

func main() {
	log.Println("Starting billing scheduler...")

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	billingService := buildService(db, redisClient, cfg)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone: %v", err)
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	setupCronJobs(c, cfg, billingService)

	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	<-c.Stop().Done()
	log.Println("Scheduler stopped")
}

func buildService(db *sqlx.DB, redisClient *redis.Client, cfg *config.Config) *service.BillingService {
	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var transport notifier.Transport = notifier.NewLogTransport()
	if cfg.Notifier.SendgridAPIKey != "" {
		transport = notifier.NewSendgridTransport(cfg.Notifier.SendgridAPIKey, cfg.Notifier.FromName, cfg.Notifier.FromEmail)
	}

	dispatcher := notifier.NewDispatcher(notificationRepo, userRepo, redisClient, transport, cfg.Billing.DedupWindow)

	return service.NewBillingService(paymentRepo, enrollmentRepo, courseRepo, userRepo, dispatcher, cfg)
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, billingService *service.BillingService) {
	jobs := []struct {
		spec   string
		action domain.AccessControlAction
	}{
		{cfg.Scheduler.OverdueSpec, domain.ActionCheckOverduePayments},
		{cfg.Scheduler.RestoreSpec, domain.ActionRestoreAccessAfterPayment},
		{cfg.Scheduler.ReminderSpec, domain.ActionSendPaymentReminders},
	}

	for _, job := range jobs {
		action := job.action
		_, err := c.AddFunc(job.spec, func() {
			runSweep(billingService, action)
		})
		if err != nil {
			log.Printf("Error scheduling %s: %v", action, err)
		}
	}

	log.Println("Cron jobs scheduled successfully")
}

func runSweep(billingService *service.BillingService, action domain.AccessControlAction) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	log.Printf("Running %s...", action)

	summary, err := billingService.RunAccessControl(ctx, action)
	if err != nil {
		log.Printf("%s failed: %v", action, err)
		return
	}

	log.Printf("%s done: processed=%d changed=%d errors=%d",
		action, summary.Processed, summary.Changed, len(summary.Errors))
	for _, itemErr := range summary.Errors {
		log.Printf("%s item error: %s", action, itemErr)
	}
}
