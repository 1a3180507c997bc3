// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package domain

import "context"

// EmailService defines the interface for sending generated reports by email.
type EmailService interface {
	SendDailyReport(ctx context.Context, report ReportEmail) error
}

// ReportEmail contains the data needed to deliver one daily report.
type ReportEmail struct {
	Recipients []string
	ReportDate string // YYYY-MM-DD
	Summary    string // Plain text body summarizing the report
	CSV        []byte // Report content, attached as a CSV file
	Filename   string // Attachment filename, e.g. "breakout-report-2026-08-28.csv"
}
