// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/verveadvisory/breakout-tracker-service/internal/handlers"
	"github.com/verveadvisory/breakout-tracker-service/internal/infrastructure/auth"
	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
	"github.com/verveadvisory/breakout-tracker-service/internal/middleware"
)

// adminPathPrefixes are the endpoints that require authentication when JWT
// auth is enabled. The webhook endpoint stays open since Zoom authenticates
// with its own HMAC signature, and the health endpoints stay open for probes.
var adminPathPrefixes = []string{
	"/calibration",
	"/qos",
	"/report",
	"/debug",
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(flags flags, httpHandler *handlers.HTTPHandler, jwtAuth *auth.JWTAuth, gracefulCloseWG *sync.WaitGroup) *http.Server {
	router := mux.NewRouter()
	httpHandler.RegisterRoutes(router)

	var handler http.Handler = router

	// Add HTTP middleware
	// Note: Order matters - the outermost middleware should be the last one
	// added to the handler since they are executed in reverse order.
	if jwtAuth != nil {
		handler = adminAuthMiddleware(jwtAuth)(handler)
	}
	handler = middleware.RequestLoggerMiddleware()(handler)
	handler = otelhttp.NewHandler(handler, serviceName)

	// Set up http listener in a goroutine using provided command line parameters.
	var addr string
	if flags.Bind == "*" {
		addr = ":" + flags.Port
	} else {
		addr = flags.Bind + ":" + flags.Port
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
	gracefulCloseWG.Add(1)
	go func() {
		slog.With("addr", addr).Debug("starting http server, listening on port " + flags.Port)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			slog.With(logging.ErrKey, err).Error("http listener error")
			os.Exit(1)
		}
		// Because ErrServerClosed is *immediately* returned when Shutdown is
		// called, not when when Shutdown completes, this must not yet decrement
		// the wait group.
	}()

	return httpServer
}

// adminAuthMiddleware enforces bearer auth on the administrative endpoints
// while leaving the webhook and health endpoints untouched.
func adminAuthMiddleware(jwtAuth *auth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := jwtAuth.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range adminPathPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					protected.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
