package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/appship/engage-api/internal/config"
	"github.com/appship/engage-api/internal/email"
	campaignHandler "github.com/appship/engage-api/internal/handler/campaign"
	healthHandler "github.com/appship/engage-api/internal/handler/health"
	trackingHandler "github.com/appship/engage-api/internal/handler/tracking"
	"github.com/appship/engage-api/internal/ratelimit"
	"github.com/appship/engage-api/internal/repository/postgres"
	"github.com/appship/engage-api/internal/router"
	dripService "github.com/appship/engage-api/internal/service/drip"
	trackingService "github.com/appship/engage-api/internal/service/tracking"
	"github.com/appship/engage-api/pkg/messaging"
	redisBroker "github.com/appship/engage-api/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	leadRepo := postgres.NewLeadRepository(db)
	prospectRepo := postgres.NewProspectRepository(db)
	trackingRepo := postgres.NewTrackingRepository(db)
	sequenceRepo := postgres.NewSequenceRepository(db)

	// The broker is optional: without redis the tracking path simply
	// skips event publication.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{URL: cfg.Redis.URL}, &log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, engagement events will not be published")
		} else {
			defer broker.Close()
		}
	}

	// Initialize services
	sender := email.NewSMTPSender(cfg.SMTP, cfg.Server.TrackingURL)
	trackingSvc := trackingService.NewService(trackingRepo, broker)
	dripSvc := dripService.NewService(
		leadRepo,
		prospectRepo,
		sequenceRepo,
		trackingRepo,
		sender,
		dripService.WithSendTimeout(cfg.Drip.SendTimeout),
	)

	limiter := ratelimit.NewLimiter(
		ratelimit.WithMaxRequests(cfg.RateLimit.MaxRequests),
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithCleanupInterval(cfg.RateLimit.CleanupInterval),
	)

	// Setup router
	r := router.NewRouter(
		limiter,
		trackingHandler.NewHandler(trackingSvc),
		campaignHandler.NewHandler(dripSvc, cfg.Server.CronKey),
		healthHandler.NewHandler(db),
		router.Config{TriggerRate: rate.Limit(1), TriggerBurst: 5},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
