// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/verveadvisory/breakout-tracker-service/internal/calibration"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/internal/service"
)

// flags are the command line flags for the breakout tracker service.
type flags struct {
	Debug bool
	Port  string
	Bind  string
}

// environment are the environment variables for the breakout tracker service.
type environment struct {
	Port              string
	NatsURL           string
	ZoomWebhookSecret string
	Zoom              zoomConfig
	Scout             scoutConfig
	Calibration       calibrationConfig
	QoSFinalizeDelay  time.Duration
	QoSSchedule       string
	Report            reportConfig
	SMTP              smtpConfig
	JWTAuthEnabled    bool
}

// zoomConfig holds the Zoom REST API credentials (Server-to-Server OAuth).
type zoomConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
}

// Configured reports whether the Zoom REST client can be set up.
func (c zoomConfig) Configured() bool {
	return c.AccountID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// scoutConfig identifies the scout bot whose events are excluded from
// attendance data.
type scoutConfig struct {
	Name  string
	Email string
}

// calibrationConfig tunes the autonomous calibration run.
type calibrationConfig struct {
	InterMoveDelay        time.Duration
	MaxMoveRetries        int
	RoomControllerTimeout time.Duration
}

// reportConfig configures daily report generation and delivery.
type reportConfig struct {
	Timezone   string
	Schedule   string
	Recipients []string
}

// smtpConfig holds the SMTP settings for report delivery.
type smtpConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Configured reports whether report emails can be sent.
func (c smtpConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// parseFlags parses command line flags for the breakout tracker service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug: *debug,
		Port:  *port,
		Bind:  *bind,
	}
}

// parseEnv parses environment variables for the breakout tracker service
func parseEnv() environment {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	webhookSecret := os.Getenv("ZOOM_WEBHOOK_SECRET")
	if webhookSecret == "" {
		slog.Error("ZOOM_WEBHOOK_SECRET environment variable is required but not set")
		os.Exit(1)
	}

	scoutName := os.Getenv("SCOUT_BOT_NAME")
	if scoutName == "" {
		scoutName = "Scout Bot"
	}

	reportSchedule := os.Getenv("REPORT_SCHEDULE")
	if reportSchedule == "" {
		// 18:30 UTC, after the last sessions of the day wrap up.
		reportSchedule = "FREQ=DAILY;BYHOUR=18;BYMINUTE=30;BYSECOND=0"
	}

	qosSchedule := os.Getenv("QOS_SCHEDULE")
	if qosSchedule == "" {
		// Collect yesterday's leftovers shortly after midnight UTC.
		qosSchedule = "FREQ=DAILY;BYHOUR=1;BYMINUTE=0;BYSECOND=0"
	}

	return environment{
		Port:              port,
		NatsURL:           natsURL,
		ZoomWebhookSecret: webhookSecret,
		Zoom: zoomConfig{
			AccountID:    os.Getenv("ZOOM_ACCOUNT_ID"),
			ClientID:     os.Getenv("ZOOM_CLIENT_ID"),
			ClientSecret: os.Getenv("ZOOM_CLIENT_SECRET"),
		},
		Scout: scoutConfig{
			Name:  scoutName,
			Email: os.Getenv("SCOUT_BOT_EMAIL"),
		},
		Calibration: calibrationConfig{
			InterMoveDelay:        durationEnv("CALIBRATION_INTER_MOVE_DELAY", 5*time.Second),
			MaxMoveRetries:        intEnv("CALIBRATION_MAX_MOVE_RETRIES", calibration.DefaultMaxRetries),
			RoomControllerTimeout: durationEnv("ROOM_CONTROLLER_TIMEOUT", 0),
		},
		QoSFinalizeDelay: durationEnv("QOS_FINALIZE_DELAY", service.DefaultFinalizeDelay),
		QoSSchedule:      qosSchedule,
		Report: reportConfig{
			Timezone:   os.Getenv("REPORT_TIMEZONE"),
			Schedule:   reportSchedule,
			Recipients: listEnv("REPORT_RECIPIENTS"),
		},
		SMTP: smtpConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     intEnv("SMTP_PORT", 587),
			From:     os.Getenv("SMTP_FROM"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		JWTAuthEnabled: os.Getenv("JWT_AUTH_ENABLED") == "true",
	}
}

// durationEnv parses a duration environment variable, falling back to the
// given default when the variable is unset or malformed.
func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).
			Error("invalid duration environment variable, using default")
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key, "value", raw).
			Error("invalid integer environment variable, using default")
		return fallback
	}
	return n
}

// listEnv parses a comma-separated environment variable into a slice,
// trimming whitespace and dropping empty entries.
func listEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
