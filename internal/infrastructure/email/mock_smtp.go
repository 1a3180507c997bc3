// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package email

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockSMTPServer is a minimal scripted SMTP server for tests. It answers each
// client command with the next canned response and falls back to "250 OK".
type mockSMTPServer struct {
	listener  net.Listener
	responses []string
}

func newMockSMTPServer(t *testing.T, responses []string) *mockSMTPServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &mockSMTPServer{
		listener:  listener,
		responses: responses,
	}
	t.Cleanup(func() { _ = listener.Close() })

	go server.serve()
	return server
}

// hostPort returns the host and numeric port the server is listening on.
func (s *mockSMTPServer) hostPort(t *testing.T) (string, int) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func (s *mockSMTPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *mockSMTPServer) handleConnection(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	_, _ = conn.Write([]byte("220 localhost SMTP ready\r\n"))

	responseIndex := 0
	inData := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		trimmed := strings.TrimSpace(line)

		// During DATA, body lines get no reply; only the "." terminator does.
		if inData {
			if trimmed != "." {
				continue
			}
			inData = false
		} else if strings.HasPrefix(strings.ToUpper(trimmed), "QUIT") {
			_, _ = conn.Write([]byte("221 Bye\r\n"))
			return
		}

		response := "250 OK"
		if responseIndex < len(s.responses) {
			response = s.responses[responseIndex]
			responseIndex++
		}
		if strings.HasPrefix(response, "354") {
			inData = true
		}
		_, _ = conn.Write([]byte(response + "\r\n"))
	}
}

func successfulSMTPResponses() []string {
	return []string{
		"250 Hello",            // HELO/EHLO
		"250 OK",               // MAIL FROM
		"250 OK",               // RCPT TO
		"354 Start mail input", // DATA
		"250 OK",               // end of data
	}
}

func failingSMTPResponses() []string {
	return []string{
		"250 Hello",               // HELO/EHLO
		"550 Mailbox unavailable", // MAIL FROM
	}
}
