package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"billing-backend/internal/auth"
	"billing-backend/internal/cache"
	"billing-backend/internal/config"
	"billing-backend/internal/database"
	"billing-backend/internal/db"
	"billing-backend/internal/handlers"
	"billing-backend/internal/health"
	router "billing-backend/internal/http"
	"billing-backend/internal/middleware"
	"billing-backend/internal/monitoring"
	"billing-backend/internal/repositories"
	"billing-backend/internal/services"
	"billing-backend/migrations"
)

func main() {
	cfg := config.Load()

	pool := db.Connect(cfg)
	defer pool.Close()

	migrator := database.NewMigratorWithFS(pool, migrations.FS, ".")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := migrator.RunMigrations(ctx); err != nil {
		cancel()
		log.Fatalf("[Migrations] failed: %v", err)
	}
	cancel()

	if err := cache.Init(); err != nil {
		log.Printf("[Cache] redis unavailable, serving uncached: %v", err)
	}

	userRepo := repositories.NewUserRepository(pool)
	businessRepo := repositories.NewBusinessRepository(pool)
	customerRepo := repositories.NewCustomerRepository(pool)
	assocRepo := repositories.NewAssociationRepository(pool)
	paymentRepo := repositories.NewPaymentRepository(pool)
	logRepo := repositories.NewPaymentLogRepository(pool)

	jwtManager := auth.NewJWTManager(cfg)

	userSvc := services.NewUserService(pool, userRepo, customerRepo, jwtManager)
	businessSvc := services.NewBusinessService(businessRepo)
	customerSvc := services.NewCustomerService(pool, customerRepo, assocRepo, paymentRepo, logRepo, businessRepo)
	paymentSvc := services.NewPaymentService(pool, paymentRepo, logRepo, assocRepo, customerRepo, businessRepo)
	overviewSvc := services.NewOverviewService(paymentRepo, businessRepo, assocRepo)
	receiptSvc := services.NewReceiptService(paymentRepo)

	checker := health.NewHealthChecker(pool)

	h := router.Handlers{
		Auth:     handlers.NewAuthHandler(userSvc),
		Business: handlers.NewBusinessHandler(businessSvc),
		Customer: handlers.NewCustomerHandler(customerSvc),
		Payment:  handlers.NewPaymentHandler(paymentSvc, receiptSvc),
		Overview: handlers.NewOverviewHandler(overviewSvc),
		Health:   handlers.NewHealthHandler(checker),
	}

	authMW := middleware.NewAuthMiddleware(jwtManager)
	r := router.NewRouter(h, authMW)
	handler := router.Chain(r, middleware.NewCORS(cfg))

	go monitoring.NewServer(pool, cfg.Server.MonitoringPort).Start()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("[Server] listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
