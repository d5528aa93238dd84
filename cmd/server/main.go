package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gymops-backend/internal/config"
	"gymops-backend/internal/db"
	"gymops-backend/internal/events"
	"gymops-backend/internal/handler"
	"gymops-backend/internal/repository"
	"gymops-backend/internal/server"
	"gymops-backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}

	// Event publisher: broker when configured, log otherwise.
	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.AMQPURL != "" {
		amqpPub := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		defer amqpPub.Close()
		publisher = amqpPub
	}

	// repositories
	branchRepo := repository.BranchRepository{DB: pg}
	memberRepo := repository.MemberRepository{DB: pg}
	classRepo := repository.ClassRepository{DB: pg}
	planRepo := repository.PlanRepository{DB: pg}
	bookingRepo := repository.BookingRepository{DB: pg}
	ledgerRepo := repository.LedgerRepository{DB: pg}
	subscriptionRepo := repository.SubscriptionRepository{DB: pg}

	// services
	bookingSvc := service.BookingService{Store: bookingRepo, Events: publisher, Logger: logger}
	ledgerSvc := service.LedgerService{Store: ledgerRepo, Events: publisher, Logger: logger}
	subscriptionSvc := service.SubscriptionService{Store: subscriptionRepo, Events: publisher, Logger: logger}

	go subscriptionSvc.RunExpirySweep(ctx, cfg.ExpirySweep)

	// handlers
	healthHandler := handler.HealthHandler{DB: pg}
	branchHandler := handler.BranchHandler{Repo: branchRepo}
	memberHandler := handler.MemberHandler{Repo: memberRepo, Ledger: ledgerSvc}
	classHandler := handler.ClassHandler{Repo: classRepo}
	bookingHandler := handler.BookingHandler{Svc: bookingSvc, Repo: bookingRepo}
	planHandler := handler.PlanHandler{Repo: planRepo}
	subscriptionHandler := handler.SubscriptionHandler{Svc: subscriptionSvc, Repo: subscriptionRepo}
	invoiceHandler := handler.InvoiceHandler{Svc: ledgerSvc}
	paymentHandler := handler.PaymentHandler{Svc: ledgerSvc}

	router := server.NewRouter(cfg, logger, healthHandler, branchHandler, memberHandler, classHandler, bookingHandler, planHandler, subscriptionHandler, invoiceHandler, paymentHandler)

	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
