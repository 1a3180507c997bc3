// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/auth"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/email"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/messaging"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/store"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

const (
	serviceName = "breakout-tracker-service"

	natsShutdownTimeout = 25 * time.Second

	participantEventsBucket = "participant-events"
	cameraEventsBucket      = "camera-events"
	roomMappingsBucket      = "room-mappings"
	qosRecordsBucket        = "qos-records"

	// natsQueue is the queue group shared by all instances so each webhook
	// event is handled exactly once.
	natsQueue = serviceName
)

// setupJWTAuth configures JWT authentication for the administrative endpoints
func setupJWTAuth() (*auth.JWTAuth, error) {
	jwtAuthConfig := auth.JWTAuthConfig{
		JWKSURL:            os.Getenv("JWKS_URL"),
		Audience:           os.Getenv("JWT_AUDIENCE"),
		MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
	}
	return auth.NewJWTAuth(jwtAuthConfig)
}

// setupEmailService configures SMTP report delivery. Returns nil when SMTP is
// not configured; report sending then answers 503.
func setupEmailService(env environment) domain.EmailService {
	if !env.SMTP.Configured() {
		slog.Info("SMTP is not configured, report emails are disabled")
		return nil
	}
	return email.NewSMTPService(email.SMTPConfig{
		Host:     env.SMTP.Host,
		Port:     env.SMTP.Port,
		From:     env.SMTP.From,
		Username: env.SMTP.Username,
		Password: env.SMTP.Password,
	})
}

// setupTracing installs an OTLP HTTP trace exporter when an OTLP endpoint is
// configured through the standard OTEL_EXPORTER_OTLP_* environment variables.
// The returned function flushes and shuts down the tracer provider.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" &&
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
		slog.Info("no OTLP endpoint configured, tracing export is disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

// setupNATS connects to the NATS server. The closed handler decrements the
// graceful close wait group once the connection has fully drained, and wakes
// the main goroutine in case the connection was lost rather than closed.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	gracefulCloseWG.Add(1)
	natsConn, err := nats.Connect(
		env.NatsURL,
		nats.DrainTimeout(natsShutdownTimeout),
		nats.ConnectHandler(func(nc *nats.Conn) {
			slog.With("nats_url", nc.ConnectedUrlRedacted()).InfoContext(ctx, "NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				slog.With(logging.ErrKey, err, "subject", sub.Subject, "queue", sub.Queue).
					ErrorContext(ctx, "async NATS error")
				return
			}
			slog.With(logging.ErrKey, err).ErrorContext(ctx, "async NATS error")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.InfoContext(ctx, "NATS connection closed")
			gracefulCloseWG.Done()
			select {
			case done <- syscall.SIGTERM:
			default:
			}
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", env.NatsURL, err)
	}
	return natsConn, nil
}

// repositories bundles the key-value backed repositories for the service.
type repositories struct {
	ParticipantEvents *store.NatsParticipantEventRepository
	CameraEvents      *store.NatsCameraEventRepository
	RoomMappings      *store.NatsRoomMappingRepository
	QoS               *store.NatsQoSRepository
}

// getKeyValueStores creates or updates the JetStream key-value buckets and
// wraps them in the service repositories.
func getKeyValueStores(ctx context.Context, natsConn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv := func(bucket string) (jetstream.KeyValue, error) {
		kvStore, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket: bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to bind key-value bucket %s: %w", bucket, err)
		}
		return kvStore, nil
	}

	participantEvents, err := kv(participantEventsBucket)
	if err != nil {
		return nil, err
	}
	cameraEvents, err := kv(cameraEventsBucket)
	if err != nil {
		return nil, err
	}
	roomMappings, err := kv(roomMappingsBucket)
	if err != nil {
		return nil, err
	}
	qosRecords, err := kv(qosRecordsBucket)
	if err != nil {
		return nil, err
	}

	return &repositories{
		ParticipantEvents: store.NewNatsParticipantEventRepository(participantEvents),
		CameraEvents:      store.NewNatsCameraEventRepository(cameraEvents),
		RoomMappings:      store.NewNatsRoomMappingRepository(roomMappings),
		QoS:               store.NewNatsQoSRepository(qosRecords),
	}, nil
}

// webhookSubjects are the NATS subjects the webhook event consumer handles.
var webhookSubjects = []string{
	models.ZoomWebhookMeetingEndedSubject,
	models.ZoomWebhookMeetingParticipantJoinedSubject,
	models.ZoomWebhookMeetingParticipantLeftSubject,
	models.ZoomWebhookBreakoutRoomParticipantJoinedSubject,
	models.ZoomWebhookBreakoutRoomParticipantLeftSubject,
	models.ZoomWebhookMeetingParticipantVideoOnSubject,
	models.ZoomWebhookMeetingParticipantVideoOffSubject,
}

// createNatsSubscriptions queue-subscribes the webhook event handler to every
// webhook subject.
func createNatsSubscriptions(ctx context.Context, handler domain.MessageHandler, natsConn *nats.Conn) error {
	for _, subject := range webhookSubjects {
		_, err := natsConn.QueueSubscribe(subject, natsQueue, func(msg *nats.Msg) {
			handler.HandleMessage(ctx, messaging.NewNatsMsg(msg))
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
		}
	}
	slog.InfoContext(ctx, "created NATS queue subscriptions",
		"queue", natsQueue,
		"subjects", len(webhookSubjects),
	)
	return nil
}
