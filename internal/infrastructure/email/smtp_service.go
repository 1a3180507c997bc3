// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package email delivers generated daily reports over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

// SMTPService implements the EmailService interface using SMTP
type SMTPService struct {
	config SMTPConfig
}

// SMTPConfig holds the SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string // Optional for authenticated SMTP
	Password string // Optional for authenticated SMTP
}

// NewSMTPService creates a new SMTP email service
func NewSMTPService(config SMTPConfig) *SMTPService {
	return &SMTPService{
		config: config,
	}
}

// SendDailyReport sends a daily report email with the CSV attached.
func (s *SMTPService) SendDailyReport(ctx context.Context, report domain.ReportEmail) error {
	ctx = logging.AppendCtx(ctx, slog.String("report_date", report.ReportDate))
	ctx = logging.AppendCtx(ctx, slog.String("recipients", strings.Join(report.Recipients, ",")))

	if len(report.Recipients) == 0 {
		return fmt.Errorf("no report recipients configured")
	}
	if len(report.CSV) == 0 {
		return fmt.Errorf("report CSV is empty")
	}

	subject := fmt.Sprintf("Breakout Room Report: %s", report.ReportDate)
	filename := report.Filename
	if filename == "" {
		filename = fmt.Sprintf("breakout-report-%s.csv", report.ReportDate)
	}

	message := buildReportMessage(report.Recipients, subject, report.Summary, report.CSV, filename, s.config)
	if err := sendEmailMessage(report.Recipients, message, s.config); err != nil {
		slog.ErrorContext(ctx, "failed to send report email", logging.ErrKey, err)
		return err
	}

	slog.InfoContext(ctx, "report email sent successfully")
	return nil
}
