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
	"github.com/yeremiapane/food-checkout/config"
	"github.com/yeremiapane/food-checkout/database"
	"github.com/yeremiapane/food-checkout/kds"
	"github.com/yeremiapane/food-checkout/messaging"
	"github.com/yeremiapane/food-checkout/router"
	"github.com/yeremiapane/food-checkout/services"
	"github.com/yeremiapane/food-checkout/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load config: %v", err)
	}
	utils.InitLogger(cfg.LogLevel)
	utils.SetJWTSecret(cfg.JWTSecret)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	// Event fan-out: websocket hub selalu aktif, RabbitMQ opsional
	hub := kds.NewHub()
	publishers := services.MultiPublisher{hub}
	if cfg.RabbitMQURL != "" {
		mq, err := messaging.Dial(cfg.RabbitMQURL)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer mq.Close()
		publishers = append(publishers, mq)
		utils.InfoLogger.Info("RabbitMQ event publisher enabled")
	}

	gateway := services.NewMidtransService(&cfg.Gateway)
	if err := gateway.ValidateConfig(); err != nil {
		utils.ErrorLogger.Warnf("Payment gateway config incomplete: %v", err)
	}

	invoices := services.NewInvoiceService(db)
	states := services.NewOrderStateMachine(db, publishers)
	payments := services.NewPaymentService(db, states, gateway, cfg.Gateway.Timeout, publishers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reconciliation loop untuk payment yang menunggu konfirmasi gateway
	monitor := services.NewPaymentMonitor(db, payments, gateway, cfg.ReconcileInterval)
	monitor.Start(ctx)

	r := router.SetupRouter(router.Deps{
		DB:          db,
		Hub:         hub,
		Carts:       services.NewCartService(db),
		Checkout:    services.NewCheckoutService(db, invoices, publishers),
		Orders:      services.NewOrderService(db),
		States:      states,
		Payments:    payments,
		Invoices:    invoices,
		Signatures:  gateway,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown failed: %v", err)
	}
	m := monitor.GetMetrics()
	utils.InfoLogger.Infof("Payment monitor: checked=%d completed=%d failed=%d pending=%d lookup_errors=%d",
		m.Checked, m.SuccessfulPayments, m.FailedPayments, m.PendingPayments, m.LookupErrors)
}
