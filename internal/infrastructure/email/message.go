// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package email

import (
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"
)

// buildReportMessage builds the complete email message with headers, a plain
// text body part and the report CSV as a base64 encoded attachment
func buildReportMessage(recipients []string, subject, textBody string, csv []byte, filename string, config SMTPConfig) string {
	boundary := "===============1234567890123456789=="

	var message strings.Builder

	// Email headers
	message.WriteString(fmt.Sprintf("From: %s\r\n", config.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	message.WriteString("\r\n")

	// Plain text part
	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	message.WriteString("\r\n")
	message.WriteString(textBody)
	message.WriteString("\r\n")

	// CSV attachment part
	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/csv; charset=\"UTF-8\"\r\n")
	message.WriteString("Content-Transfer-Encoding: base64\r\n")
	message.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", filename))
	message.WriteString("\r\n")
	message.WriteString(wrapBase64(base64.StdEncoding.EncodeToString(csv)))
	message.WriteString("\r\n")

	// End boundary
	message.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return message.String()
}

// wrapBase64 folds encoded content into 76 character lines per RFC 2045
func wrapBase64(encoded string) string {
	const lineLen = 76

	var wrapped strings.Builder
	for len(encoded) > lineLen {
		wrapped.WriteString(encoded[:lineLen])
		wrapped.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	wrapped.WriteString(encoded)
	return wrapped.String()
}

// sendEmailMessage sends a pre-built email message via SMTP
func sendEmailMessage(recipients []string, message string, config SMTPConfig) error {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	err := smtp.SendMail(addr, auth, config.From, recipients, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
