package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"sellora-core/internal/config"
	"sellora-core/internal/db"
	"sellora-core/internal/logger"
	"sellora-core/internal/notify"
	"sellora-core/internal/order"
	"sellora-core/internal/payment"
	"sellora-core/internal/payment/webhook"
	"sellora-core/internal/product"
	"sellora-core/internal/transport/rest"
	"sellora-core/internal/user"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	var dispatcher notify.Dispatcher = notify.Nop{}
	if cfg.AMQPURL != "" {
		d, err := notify.NewAMQPDispatcher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			log.Fatalf("Failed to connect notification broker: %v", err)
		}
		dispatcher = d
	}
	defer dispatcher.Close()

	gateway := payment.NewRazorpayGateway(cfg.GatewayKeyID, cfg.GatewayKeySecret)
	intents := payment.NewIntentStore(database)

	productRepo := product.NewRepository(database)
	orderRepo := order.NewRepository(database, productRepo)
	orderSvc := order.NewService(orderRepo, productRepo, gateway, intents, dispatcher, cfg.WebhookSecret)

	userRepo := user.NewRepository(database)
	userSvc := user.NewService(userRepo, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := payment.NewReconciler(
		intents, gateway, orderSvc,
		cfg.ReconcileInterval, cfg.ReconcileGrace, cfg.PendingOrderTTL,
	)
	go reconciler.Run(ctx)

	handlers := rest.NewHandlers(orderSvc, userSvc)
	wh := webhook.NewHandler(orderSvc)
	router := rest.NewRouter(handlers, wh, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Printf("Order engine listening on :%s", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
