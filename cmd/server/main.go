package main // Entry point package

import (
	"context" // Timeouts for startup work
	"time"    // Duration constants

	"github.com/joho/godotenv"      // .env loader
	"github.com/labstack/echo/v4"   // Echo web framework
	"go.uber.org/zap"               // Structured logging

	"github.com/iliyamo/rail-ticket-gate/internal/config"     // Env config loader
	"github.com/iliyamo/rail-ticket-gate/internal/database"   // MySQL connector
	"github.com/iliyamo/rail-ticket-gate/internal/handler"    // HTTP handlers
	"github.com/iliyamo/rail-ticket-gate/internal/logger"     // Zap logger factory
	"github.com/iliyamo/rail-ticket-gate/internal/middleware" // Rate limiter
	"github.com/iliyamo/rail-ticket-gate/internal/queue"      // Event consumer
	"github.com/iliyamo/rail-ticket-gate/internal/repository" // Data access
	"github.com/iliyamo/rail-ticket-gate/internal/router"     // Route table
	"github.com/iliyamo/rail-ticket-gate/internal/service"    // Domain services
	"github.com/iliyamo/rail-ticket-gate/internal/store"      // Record store backends
	"github.com/iliyamo/rail-ticket-gate/internal/utils"      // Token signer
)

func main() {
	_ = godotenv.Load() // .env is optional outside dev

	cfg := config.Load()                 // Load environment config
	log := logger.New(cfg.Env)           // Build the base logger
	defer func() { _ = log.Sync() }()    // Flush buffered log lines on exit

	// Record store: Redis when reachable, otherwise in-memory. The
	// in-memory store still has compare-and-swap, so single-node
	// correctness is identical; only durability and the shared
	// watch feed are lost.
	rdb := config.NewRedisClient()
	var st store.Store
	if rdb != nil {
		st = store.NewRedis(rdb) // Durable shared store
		log.Info("using redis record store")
	} else {
		st = store.NewMemory() // Process-local fallback
		log.Warn("redis unreachable, using in-memory record store")
	}

	seatRepo := repository.NewSeatRepo(st)     // Seat availability map
	ticketRepo := repository.NewTicketRepo(st) // Issued tickets
	scanRepo := repository.NewScanRepo(st)     // Current-scan slot

	if len(cfg.SeatIDs) > 0 { // Seed the seat map on boot
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := seatRepo.Seed(ctx, cfg.SeatIDs); err != nil {
			log.Fatal("seeding seats", zap.Error(err))
		}
		cancel()
		log.Info("seat map seeded", zap.Int("seats", len(cfg.SeatIDs)))
	}

	signer := utils.NewTokenSigner(cfg.TokenSecret) // nil when no secret set
	if signer != nil {
		log.Info("scan token signing enabled")
	}

	publisher := service.NewPublisher(cfg.AMQPURL, log.Named("publisher")) // nil without a broker
	if publisher == nil {
		log.Warn("no broker configured, gate events disabled")
	} else {
		// Audit ledger is optional; the consumer logs events either way.
		var recorder queue.Recorder
		if cfg.AuditEnabled() {
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				log.Warn("audit database unavailable, ledger disabled", zap.Error(err))
			} else {
				audit := repository.NewAuditRepo(db)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := audit.EnsureSchema(ctx); err != nil {
					log.Warn("audit schema setup failed, ledger disabled", zap.Error(err))
				} else {
					recorder = audit
				}
				cancel()
			}
		}
		go queue.StartGateConsumer(cfg.AMQPURL, recorder, log.Named("consumer")) // Background consumer
	}

	engine := service.NewReservationEngine(seatRepo, ticketRepo, signer, publisher, cfg.RequiredFields, log.Named("engine"))
	resolver := service.NewScanResolver(ticketRepo, scanRepo, signer, publisher, log.Named("resolver"))
	reset := service.NewResetCoordinator(seatRepo, ticketRepo, scanRepo, publisher, log.Named("reset"))

	e := echo.New()    // Create Echo instance
	e.HideBanner = true
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb) // Pass-through without Redis
	router.Register(e,
		handler.NewTicketHandler(engine, ticketRepo),
		handler.NewScanHandler(resolver),
		handler.NewAdminHandler(seatRepo, reset, st, log.Named("admin")),
		limiter,
	)

	addr := ":" + cfg.Port // Address string with port
	log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal("server stopped", zap.Error(err))
	}
}
