package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"nvr-orchestrator/config"
	"nvr-orchestrator/constant"
	eventHandler "nvr-orchestrator/handler"
	"nvr-orchestrator/pkg/frigate"
	"nvr-orchestrator/pkg/rabbitmq"
	"nvr-orchestrator/pkg/vss"
	"nvr-orchestrator/repository"
	"nvr-orchestrator/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := repository.Open(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to open rule store")
		return
	}
	defer repo.Close()

	frigateClient := frigate.NewClient(frigate.Options{
		BaseURL:     cfg.Footage.URL,
		Timeout:     cfg.Footage.Timeout,
		ClipTimeout: cfg.Footage.ClipTimeout,
	})
	vssClient := vss.NewClient(vss.Options{
		BaseURL:       cfg.Analysis.URL,
		Timeout:       cfg.Analysis.Timeout,
		UploadTimeout: cfg.Analysis.UploadTimeout,
	})

	stager, err := service.NewStager(cfg.Staging.Dir)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to prepare staging directory")
		return
	}

	pipelineService := service.NewPipelineService(frigateClient, vssClient, stager, service.Profile{
		Title:         cfg.Profile.Title,
		ChunkDuration: cfg.Profile.ChunkDuration,
		SamplingFrame: cfg.Profile.SamplingFrame,
		EvamPipeline:  cfg.Profile.EvamPipeline,
	})
	footageService := service.NewFootageService(frigateClient, newExportStore(cfg))
	ruleService := service.NewRuleService(repo)

	tracker := service.NewJobTracker(ctx, service.NewStatusPoller(pipelineService, cfg.Events.StatusInterval))
	defer tracker.StopAll()
	router := service.NewRouter(repo, pipelineService, tracker, cfg.Events.Concurrency)

	stopEvents := startEventSource(ctx, cfg, frigateClient, router)
	defer stopEvents()

	r := gin.Default()
	r.Use(requestLogger(*zerolog.Ctx(ctx)))
	addHealth(r)
	registerRoutes(r, &handlers{
		footage:  footageService,
		pipeline: pipelineService,
		rules:    ruleService,
		listings: router,
	})

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("port", cfg.Server.HttpPort).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func newExportStore(cfg *config.Config) service.ExportStore {
	if cfg.Exports.Backend == constant.ExportBackendMinIO {
		return service.NewMinIOExportStore(cfg.Storage, cfg.Exports.Bucket, cfg.Exports.Prefix)
	}
	return service.NewFSExportStore(cfg.Exports.Dir)
}

// startEventSource starts whichever event feed is configured and returns a
// function that stops it.
func startEventSource(ctx context.Context, cfg *config.Config, source service.EventLister, router service.Dispatcher) func() {
	switch cfg.Events.Source {
	case constant.EventSourcePoll:
		feed := service.NewEventFeed(source, router, cfg.Events.Cameras, cfg.Events.PollInterval)
		h, err := feed.Start(ctx)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("failed to start event feed")
			return func() {}
		}
		return h.Stop

	case constant.EventSourceAMQP:
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
			return func() {}
		}

		consumerCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		deps := eventHandler.ServiceDependencies{Router: router}
		eventConsumer := rabbitmq.NewConsumer[eventHandler.ServiceDependencies](conn, cfg.Queue, cfg.Server.Workers, eventHandler.EventHandler)
		go func() {
			defer close(done)
			if err := eventConsumer.Consume(consumerCtx, deps); err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Msg("event consumer error")
			}
		}()
		return func() {
			stop()
			<-done
		}

	default:
		zerolog.Ctx(ctx).Info().Msg("no event source configured, rules only run on demand")
		return func() {}
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
