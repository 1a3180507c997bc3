// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package main is the breakout tracker service API that captures Zoom
// breakout room attendance data and handles NATS messages for the service.
package main

import (
	"context"
	_ "expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/handlers"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/auth"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/messaging"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/webhook"
	zoomapi "github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/zoom/api"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/internal/scheduler"
	"github.com/verveadvisory/breakout-tracker-service/internal/service"
)

const httpShutdownTimeout = 10 * time.Second

// readinessFunc adapts a closure to [handlers.ReadinessChecker].
type readinessFunc func() bool

func (f readinessFunc) IsReady() bool { return f() }

func main() {
	env := parseEnv()
	flags := parseFlags(env.Port)

	logging.InitStructureLogConfig()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up tracing")
		os.Exit(1)
	}

	// Set up JWT validation for the administrative endpoints when enabled.
	var jwtAuth *auth.JWTAuth
	if env.JWTAuthEnabled {
		jwtAuth, err = setupJWTAuth()
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting up JWT authentication")
			os.Exit(1)
		}
	}

	// Initialize email service (independent of NATS)
	emailService := setupEmailService(env)

	// Setup NATS connection
	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	// Get the key-value stores for the service.
	repos, err := getKeyValueStores(ctx, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	messageBuilder := messaging.NewMessageBuilder(natsConn)
	roomController := messaging.NewNatsRoomController(natsConn, env.Calibration.RoomControllerTimeout)

	// The Zoom REST client is optional; without it QoS collection answers 503.
	var pastMeetingProvider domain.PastMeetingProvider
	if env.Zoom.Configured() {
		pastMeetingProvider = zoomapi.NewClient(zoomapi.Config{
			AccountID:    env.Zoom.AccountID,
			ClientID:     env.Zoom.ClientID,
			ClientSecret: env.Zoom.ClientSecret,
		})
	} else {
		slog.Warn("Zoom API credentials are not configured, QoS collection is disabled")
	}

	// Initialize services
	meetingState := service.NewMeetingState()
	qosService := service.NewQoSService(
		pastMeetingProvider,
		repos.QoS,
		repos.ParticipantEvents,
		env.QoSFinalizeDelay,
	)
	eventService := service.NewEventService(
		meetingState,
		repos.ParticipantEvents,
		repos.CameraEvents,
		repos.RoomMappings,
		qosService,
		env.Scout.Name,
		env.Scout.Email,
	)
	calibrationService := service.NewCalibrationService(
		meetingState,
		repos.RoomMappings,
		messageBuilder,
		roomController,
		env.Scout.Name,
		env.Scout.Email,
		env.Calibration.InterMoveDelay,
		env.Calibration.MaxMoveRetries,
	)
	reportService, err := service.NewReportService(
		repos.ParticipantEvents,
		repos.CameraEvents,
		repos.RoomMappings,
		repos.QoS,
		emailService,
		env.Report.Recipients,
		env.Report.Timezone,
	)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up report service")
		return
	}

	// Reload today's persisted mappings so breakout joins resolve to room
	// names after a restart without a recalibration.
	if _, err := eventService.RestoreMappings(ctx); err != nil {
		slog.With(logging.ErrKey, err).Warn("error restoring persisted room mappings")
	}

	// Initialize handlers
	zoomWebhookHandler := handlers.NewZoomWebhookHandler(eventService)
	zoomWebhookHTTPHandler := handlers.NewZoomWebhookHTTPHandler(
		webhook.NewZoomWebhookValidator(env.ZoomWebhookSecret),
		messageBuilder,
	)
	httpHandler := handlers.NewHTTPHandler(
		zoomWebhookHTTPHandler,
		calibrationService,
		qosService,
		reportService,
		meetingState,
		readinessFunc(natsConn.IsConnected),
		readinessFunc(zoomWebhookHandler.HandlerReady),
	)

	httpServer := setupHTTPServer(flags, httpHandler, jwtAuth, &gracefulCloseWG)

	// Create NATS subscriptions for the service.
	err = createNatsSubscriptions(ctx, zoomWebhookHandler, natsConn)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error creating NATS subscriptions")
		return
	}

	// Start the recurring jobs.
	sched := scheduler.New()
	if emailService != nil && len(env.Report.Recipients) > 0 {
		err = sched.Add("daily-report", env.Report.Schedule, func(ctx context.Context) error {
			return reportService.SendDaily(ctx, "")
		})
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error scheduling daily report job")
			return
		}
	}
	if pastMeetingProvider != nil {
		err = sched.Add("scheduled-qos", env.QoSSchedule, func(ctx context.Context) error {
			result, err := qosService.CollectScheduled(ctx, "")
			if err == nil && result.Skipped {
				slog.InfoContext(ctx, "scheduled QoS collection skipped", "reason", result.SkipReason)
			}
			return err
		})
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error scheduling QoS collection job")
			return
		}
	}
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		sched.Start(ctx)
	}()

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, &gracefulCloseWG, cancel, shutdownTracing)
}

// gracefulShutdown stops the HTTP server, drains the NATS connection, and
// waits for every background goroutine to finish.
func gracefulShutdown(
	httpServer *http.Server,
	natsConn *nats.Conn,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
	shutdownTracing func(context.Context) error,
) {
	slog.Info("shutting down")
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancelTimeout()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("http server shutdown error")
	}
	// The listener goroutine held this slot open; Shutdown has now completed.
	gracefulCloseWG.Done()

	// Drain processes buffered messages before closing; the closed handler
	// releases the NATS slot in the wait group.
	if err := natsConn.Drain(); err != nil {
		slog.With(logging.ErrKey, err).Error("error draining NATS connection")
		natsConn.Close()
	}

	gracefulCloseWG.Wait()

	if err := shutdownTracing(ctx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down tracer provider")
	}
}
