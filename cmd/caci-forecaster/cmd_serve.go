package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/i474232898/caci-forecaster/internal/api/http"
	"github.com/i474232898/caci-forecaster/internal/config"
	"github.com/i474232898/caci-forecaster/internal/forecast"
	"github.com/i474232898/caci-forecaster/internal/logging"
	"github.com/i474232898/caci-forecaster/internal/model"
	"github.com/i474232898/caci-forecaster/internal/mqtt"
	"github.com/i474232898/caci-forecaster/internal/pipeline"
	"github.com/i474232898/caci-forecaster/internal/scheduler"
	"github.com/i474232898/caci-forecaster/internal/store"
	"github.com/i474232898/caci-forecaster/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the forecast endpoint and run the scheduled pipeline",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Assets load once; on failure the transform stays disabled for the process lifetime.
	assets, err := model.Load(model.Paths{
		Model:        cfg.ModelPath,
		InputScaler:  cfg.InputScalerPath,
		OutputScaler: cfg.OutputScalerPath,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to load model assets; prediction functionality disabled")
	} else {
		log.Info().Str("model", cfg.ModelPath).Msg("model and scalers loaded")
	}
	transformer := forecast.NewTransformer(assets)

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	ts := telemetry.NewClient(httpClient, telemetry.Config{
		BaseURL:   cfg.BaseURL,
		ChannelID: cfg.ChannelID,
		ReadKey:   cfg.ReadKey,
		WriteKey:  cfg.WriteKey,
		Interval:  cfg.Interval,
	})

	var forecaster pipeline.Forecaster = transformer
	if cfg.TransformMode == config.TransformHTTP {
		forecaster = pipeline.NewLoopbackForecaster(cfg.LocalURL(), httpClient)
	}

	runs := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	opts := []pipeline.Option{pipeline.WithRecorder(runs)}

	if cfg.MQTT.Broker != "" {
		mqttLog := logging.Component(log, "mqtt")
		client, err := mqtt.Connect(mqtt.ClientConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		}, mqttLog)
		if err != nil {
			mqttLog.Warn().Err(err).Msg("mqtt mirror disabled")
		} else {
			defer client.Disconnect(250)
			opts = append(opts, pipeline.WithMirrors(mqtt.NewPublisher(client, cfg.MQTT.Topic, cfg.ChannelID)))
		}
	}

	runner := pipeline.NewRunner(ts, forecaster, ts, logging.Component(log, "pipeline"), opts...)

	// Scheduler that periodically forecasts and publishes.
	sched := scheduler.New(scheduler.Config{
		ChannelID:  cfg.ChannelID,
		Interval:   cfg.Interval,
		RunTimeout: cfg.RunTimeout,
		RunOnStart: cfg.RunOnStart,
	}, runner, logging.Component(log, "scheduler"))

	app := newApp(transformer, runs, sched)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	log.Info().Str("addr", cfg.Addr()).Msg("http server listening")

	if err := serve(ctx, app, ln, sched, log); err != nil {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

type runScheduler interface {
	Start() error
	Stop()
}

// serve starts the scheduler once ln is bound, so the first run can reach
// the loopback transform, then serves until ctx is done.
func serve(ctx context.Context, app *fiber.App, ln net.Listener, sched runScheduler, log zerolog.Logger) error {
	if err := sched.Start(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Listener(ln); err != nil {
			return fmt.Errorf("fiber server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newApp(transformer *forecast.Transformer, runs *store.MemoryStore, sched *scheduler.Scheduler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "caci-forecaster",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"service":      "caci-forecaster",
			"model_loaded": transformer.Available(),
			"runs_active":  sched.Running(),
		})
	})

	httpapi.RegisterRoutes(app, transformer, runs)
	return app
}
