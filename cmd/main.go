package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/vnkhanh/aetherstudy-backend/config"
	"github.com/vnkhanh/aetherstudy-backend/controllers"
	"github.com/vnkhanh/aetherstudy-backend/middleware"
	"github.com/vnkhanh/aetherstudy-backend/routes"
	"github.com/vnkhanh/aetherstudy-backend/services"
	"github.com/vnkhanh/aetherstudy-backend/utils"
	"github.com/vnkhanh/aetherstudy-backend/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using the process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	config.InitLogger(cfg)

	app := &cli.Command{
		Name:   "aetherstudy",
		Usage:  "AetherStudy API server",
		Action: func(ctx context.Context, _ *cli.Command) error { return serve(ctx, cfg) },
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: func(ctx context.Context, _ *cli.Command) error { return serve(ctx, cfg) },
			},
			{
				Name:  "migrate",
				Usage: "Create or update the database schema and exit",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return config.InitDB(cfg)
				},
			},
			{
				Name:  "sweep-subscriptions",
				Usage: "Expire active subscriptions past their expiry and exit",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := config.InitDB(cfg); err != nil {
						return err
					}
					subs := services.NewSubscriptionService(config.DB, nil, cfg.PaypalPlanID, nil)
					utils.RunSubscriptionSweep(ctx, subs)
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("application error")
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := config.InitDB(cfg); err != nil {
		return err
	}
	utils.SetJWTSecret(cfg.SupabaseJWTSecret)
	if cfg.SupabaseJWTSecret == "" {
		logrus.Warn("SUPABASE_JWT_SECRET is not set; authenticated routes will reject every request")
	}

	var store services.ObjectStore
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		store = utils.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	} else {
		logrus.Warn("Supabase storage is not configured; file routes are disabled")
	}

	var paypal services.PaypalAPI
	if cfg.PaypalClientID != "" && cfg.PaypalClientSecret != "" {
		paypal = services.NewPaypalClient(cfg.PaypalClientID, cfg.PaypalClientSecret, cfg.PaypalBaseURL, cfg.PaypalWebhookID)
	} else {
		logrus.Warn("PayPal is not configured; activation and cancellation are disabled")
	}

	llm, err := services.NewLLM(ctx, services.LLMConfig{
		Provider:          cfg.AIProvider,
		OpenAIAPIKey:      cfg.OpenAIAPIKey,
		OpenAIBaseURL:     cfg.OpenAIBaseURL,
		OpenAIModel:       cfg.OpenAIModel,
		GeminiAPIKey:      cfg.GeminiAPIKey,
		GeminiModel:       cfg.GeminiModel,
		RequestsPerSecond: cfg.AIRequestsPerSecond,
	})
	if err != nil {
		return err
	}
	if closer, ok := llm.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Warn("failed to close AI client")
			}
		}()
	}
	generator, err := services.NewGenerator(llm, cfg.AIMaxInputChars)
	if err != nil {
		return err
	}

	hub := ws.H
	subs := services.NewSubscriptionService(config.DB, paypal, cfg.PaypalPlanID, hub)
	usage := services.NewUsageService(config.DB, cfg.AIFreeWindow)
	utils.StartCleanupJob(ctx, subs, cfg.SweepInterval)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Auth-Token", "X-Client-Info", "Apikey"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}))

	routes.SetupRouter(r, config.DB, routes.Deps{
		Hub: hub,
		AI: &controllers.AIController{
			Generator:     generator,
			Usage:         usage,
			Subscriptions: subs,
			Store:         store,
			FileBucket:    cfg.StorageBucket,
		},
		Subscriptions: &controllers.SubscriptionController{Subscriptions: subs},
		Webhooks: &controllers.WebhookController{
			Processor: services.NewWebhookProcessor(config.DB, hub),
			Verifier:  paypal,
		},
		Files: &controllers.FileController{
			Store:       store,
			FileBucket:  cfg.StorageBucket,
			ImageBucket: cfg.ImageBucket,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("server shutdown failed")
		}
	}()

	logrus.WithField("port", cfg.Port).Info("Server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
