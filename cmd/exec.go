package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"event-ticketing/config"
	"event-ticketing/internal/handlers"
	"event-ticketing/internal/services"
	"event-ticketing/internal/services/gateway/stripe"
	"event-ticketing/internal/services/mail"
	"event-ticketing/internal/services/render"
	"event-ticketing/internal/store"
	"event-ticketing/monitoring"
	"event-ticketing/security"
	"event-ticketing/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "event-ticketing/migrations"
)

const (
	eventTransport  = "3 min à pied de la gare de Coppet"
	monitorInterval = 30 * time.Second
)

func Start() error {
	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// serve on PORT when started without a command
	if len(os.Args) == 1 {
		os.Args = append(os.Args, defaultServeArgs(cfg)...)
	}

	app := pocketbase.NewWithConfig(pocketbase.Config{
		DefaultDataDir: cfg.DataDir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MongoDB
	mongoClient, err := store.Connect(ctx, store.ConnectOptions{
		URI:             cfg.MongoURI,
		MaxAttempts:     cfg.MongoConnectRetries,
		RetryDelay:      cfg.MongoRetryDelay,
		SelectTimeout:   cfg.MongoSelectTimeout,
		ApplicationName: "event-ticketing",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer mongoClient.Disconnect(context.Background())

	ticketStore := store.New(mongoClient.Database(cfg.MongoDatabase))
	if err := ticketStore.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory fallbacks", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize PubNub
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		notifier = services.NewPubNubNotifier(services.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
	}

	paymentGateway := stripe.New(stripe.Config{SecretKey: cfg.StripeSecretKey})

	renderer := render.New(render.Options{
		Domain:     cfg.TicketDomain,
		TicketsDir: cfg.TicketsDir,
		QRCodesDir: cfg.QRCodesDir,
		AssetsDir:  cfg.AssetsDir,
		EventName:  cfg.EventName,
		EventDate:  cfg.EventDate,
		EventVenue: cfg.EventVenue,
	})

	sender := mail.New(mail.Options{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		TLS:         cfg.SMTPTLS,
		Username:    cfg.EmailUser,
		Password:    cfg.EmailPass,
		FromName:    cfg.EmailFromName,
		MaxAttempts: cfg.EmailMaxAttempts,
		RetryDelay:  cfg.EmailRetryDelay,
		Verify:      cfg.EmailVerifyBefore,
		EventName:   cfg.EventName,
		Organizer:   renderer.Organizer(),
		EventDate:   cfg.EventDate,
		EventHours:  cfg.EventHours,
		EventVenue:  cfg.EventVenue,
		Transport:   eventTransport,
		Contact:     cfg.EmailUser,
	})
	if !sender.Configured() {
		slog.Warn("SMTP credentials missing, tickets will not be emailed")
	}

	deduper, availabilityCache := newCaches(ctx, cfg, redisClient)

	// Initialize services
	eventLog := services.NewPocketBaseEventLog(app)
	paymentService := services.NewPaymentService(ticketStore, paymentGateway, cfg.PaymentCurrency, cfg.PaymentMethodTypes)
	fulfillmentService := services.NewFulfillmentService(ticketStore, renderer, sender, notifier)
	webhookService := services.NewWebhookService(services.WebhookOptions{
		Secret:     cfg.StripeWebhookSecret,
		Tolerance:  cfg.StripeWebhookTolerance,
		Production: cfg.IsProduction(),
	}, paymentGateway, deduper, fulfillmentService, eventLog)
	ticketService := services.NewTicketService(ticketStore)
	availabilityService := services.NewAvailabilityService(ticketStore, availabilityCache)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.IsProduction())
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	ticketHandler := handlers.NewTicketHandler(ticketService, availabilityService)
	adminHandler := handlers.NewAdminHandler(ticketService, fulfillmentService, eventLog)
	devHandler := handlers.NewDevHandler(webhookService, cfg.StripeWebhookSecret, cfg.PaymentCurrency)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)
	scannerAuth := security.NewScannerAuth(cfg.ScannerKeyHash)
	if !scannerAuth.Enabled() {
		slog.Warn("SCANNER_KEY_HASH not set, ticket scanning is unauthenticated")
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.RootCmd.AddCommand(resendCommand(fulfillmentService))

	// Start background tasks
	if cfg.EnableMetrics {
		monitoring.NewMonitor(ctx, availabilityService, monitorInterval)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Payment endpoints
		e.Router.POST("/payment/create-payment", paymentHandler.CreatePayment).BindFunc(rateLimiter.AntiBot)
		e.Router.POST("/webhook", webhookHandler.HandleWebhook)

		// Ticket endpoints
		e.Router.GET("/ticket/places-restantes", ticketHandler.GetAvailability)
		e.Router.GET("/ticket/{paymentId}", ticketHandler.GetTicket)
		e.Router.POST("/ticket/scan/{paymentId}", ticketHandler.ScanTicket).BindFunc(scannerAuth.Require)

		// Admin endpoints
		admin := e.Router.Group("/admin")
		admin.Bind(apis.RequireSuperuserAuth())
		admin.GET("/tickets/undelivered", adminHandler.ListUndelivered)
		admin.POST("/tickets/{paymentId}/resend", adminHandler.Resend)
		admin.GET("/webhook-events", adminHandler.WebhookEvents)

		// Test endpoint for payment simulation
		if !cfg.IsProduction() {
			e.Router.POST("/dev/simulate-payment", devHandler.SimulatePayment)
		}

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := healthCheck(e.Request.Context(), ticketStore, redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// newCaches picks the Redis backed webhook deduper and availability cache
// when Redis is reachable, and in-process ones otherwise.
func newCaches(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (services.EventDeduper, services.AvailabilityCache) {
	if redisClient != nil {
		return services.NewRedisDeduper(redisClient, cfg.IdempotencyTTL),
			services.NewRedisAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)
	}

	deduper := services.NewMemoryDeduper(cfg.IdempotencyCapacity, cfg.IdempotencyTTL)
	deduper.StartSweeper(ctx, cfg.IdempotencySweep)
	return deduper, services.NewMemoryAvailabilityCache(cfg.AvailabilityCacheTTL)
}

// defaultServeArgs binds to PORT and restricts CORS to the storefront origin.
func defaultServeArgs(cfg *config.Config) []string {
	args := []string{"serve", "--http", "0.0.0.0:" + cfg.Port}
	if cfg.FrontendURL != "" {
		args = append(args, "--origins", cfg.FrontendURL)
	}
	return args
}

func healthCheck(ctx context.Context, ticketStore *store.Store, redisClient *redis.Client) error {
	if err := ticketStore.Ping(ctx); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	if redisClient != nil {
		return utils.RedisHealthCheck(ctx, redisClient)
	}
	return nil
}

func resendCommand(fulfillment *services.FulfillmentService) *cobra.Command {
	return &cobra.Command{
		Use:   "resend <paymentId>",
		Short: "Re-render if needed and email the ticket for a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			ticket, err := fulfillment.Redeliver(command.Context(), args[0])
			if err != nil {
				return err
			}
			log.Printf("Ticket %s sent to %s", ticket.PaymentID, ticket.Email)
			return nil
		},
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
