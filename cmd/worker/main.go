package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/appship/engage-api/internal/config"
	"github.com/appship/engage-api/internal/email"
	"github.com/appship/engage-api/internal/repository/postgres"
	dripService "github.com/appship/engage-api/internal/service/drip"
	"github.com/appship/engage-api/pkg/logger"
	"github.com/appship/engage-api/pkg/worker"
)

// workerEnv overrides the run cadence without touching the shared yaml
// config; deployments tune it per environment.
type workerEnv struct {
	Interval    time.Duration `envconfig:"DRIP_INTERVAL" default:"24h"`
	RunOnStart  bool          `envconfig:"DRIP_RUN_ON_START" default:"false"`
	MetricsAddr string        `envconfig:"METRICS_ADDR" default:":8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker environment")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	sender := email.NewSMTPSender(cfg.SMTP, cfg.Server.TrackingURL)
	dripSvc := dripService.NewService(
		postgres.NewLeadRepository(db),
		postgres.NewProspectRepository(db),
		postgres.NewSequenceRepository(db),
		postgres.NewTrackingRepository(db),
		sender,
		dripService.WithSendTimeout(cfg.Drip.SendTimeout),
	)

	lg := logger.NewLogger(nil)
	runner := worker.NewDripRunner(dripSvc, worker.DripRunnerConfig{
		Interval:   env.Interval,
		RunOnStart: env.RunOnStart,
	}, lg)

	// Expose scheduler metrics alongside a trivial liveness probe.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	go func() {
		if err := http.ListenAndServe(env.MetricsAddr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server failed")
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go runner.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()
}
