// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain"
)

func testReport() domain.ReportEmail {
	return domain.ReportEmail{
		Recipients: []string{"ops@example.com"},
		ReportDate: "2026-08-28",
		Summary:    "Daily breakout room report attached.",
		CSV:        []byte("name,email,total_minutes\nAlice,alice@example.com,45\n"),
	}
}

func TestBuildReportMessage(t *testing.T) {
	config := SMTPConfig{From: "reports@example.com"}
	csv := []byte("name,email\nAlice,alice@example.com\n")

	message := buildReportMessage(
		[]string{"ops@example.com", "lead@example.com"},
		"Breakout Room Report: 2026-08-28",
		"Report attached.",
		csv,
		"breakout-report-2026-08-28.csv",
		config,
	)

	assert.Contains(t, message, "From: reports@example.com\r\n")
	assert.Contains(t, message, "To: ops@example.com, lead@example.com\r\n")
	assert.Contains(t, message, "Subject: Breakout Room Report: 2026-08-28\r\n")
	assert.Contains(t, message, "Content-Type: multipart/mixed;")
	assert.Contains(t, message, "Report attached.")
	assert.Contains(t, message, `Content-Disposition: attachment; filename="breakout-report-2026-08-28.csv"`)
	assert.Contains(t, message, base64.StdEncoding.EncodeToString(csv))
}

func TestWrapBase64FoldsLongLines(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 300)))
	wrapped := wrapBase64(encoded)

	for _, line := range strings.Split(wrapped, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	assert.Equal(t, encoded, strings.ReplaceAll(wrapped, "\r\n", ""))
}

func TestSendDailyReport(t *testing.T) {
	server := newMockSMTPServer(t, successfulSMTPResponses())
	host, port := server.hostPort(t)

	service := NewSMTPService(SMTPConfig{
		Host: host,
		Port: port,
		From: "reports@example.com",
	})

	require.NoError(t, service.SendDailyReport(context.Background(), testReport()))
}

func TestSendDailyReportServerFailure(t *testing.T) {
	server := newMockSMTPServer(t, failingSMTPResponses())
	host, port := server.hostPort(t)

	service := NewSMTPService(SMTPConfig{
		Host: host,
		Port: port,
		From: "reports@example.com",
	})

	err := service.SendDailyReport(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestSendDailyReportValidation(t *testing.T) {
	service := NewSMTPService(SMTPConfig{Host: "localhost", Port: 25, From: "reports@example.com"})

	report := testReport()
	report.Recipients = nil
	assert.Error(t, service.SendDailyReport(context.Background(), report))

	report = testReport()
	report.CSV = nil
	assert.Error(t, service.SendDailyReport(context.Background(), report))
}
