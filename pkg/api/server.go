// Package api serves beanstore tables over HTTP.
//
// Every route under /api/v1 requires the X-API-Key header when an API key
// is configured. /metrics is left open for scraping.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP handler. gatherer backs /metrics; nil uses the
// default registry.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	m := s.metrics

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(m.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}

		r.Get("/health", m.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Get("/profiles", m.InstrumentHandler("GET", "/api/v1/profiles", s.handleListProfiles))
		r.Post("/profiles", m.InstrumentHandler("POST", "/api/v1/profiles", s.handleCreateProfile))
		r.Get("/profiles/{key}", m.InstrumentHandler("GET", "/api/v1/profiles/{key}", s.handleGetProfile))
		r.Put("/profiles/{key}", m.InstrumentHandler("PUT", "/api/v1/profiles/{key}", s.handlePutProfile))
		r.Delete("/profiles/{key}", m.InstrumentHandler("DELETE", "/api/v1/profiles/{key}", s.handleDeleteProfile))
		r.Get("/profiles/{key}/body", m.InstrumentHandler("GET", "/api/v1/profiles/{key}/body", s.handleGetProfileBody))
		r.Post("/profiles/{key}/visit", m.InstrumentHandler("POST", "/api/v1/profiles/{key}/visit", s.handleVisitProfile))

		r.Get("/beans/{key}", m.InstrumentHandler("GET", "/api/v1/beans/{key}", s.handleGetBean))
		r.Put("/beans/{key}", m.InstrumentHandler("PUT", "/api/v1/beans/{key}", s.handlePutBean))

		r.Post("/decode", m.InstrumentHandler("POST", "/api/v1/decode", s.handleDecode))
		r.Get("/stats", m.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
	})

	return r
}

// StartServer serves handler until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, handler http.Handler, config ServerConfig) error {
	addr := net.JoinHostPort(config.Bind, fmt.Sprint(config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	if config.Logger != nil {
		config.Logger.Info("beanstore API listening", "addr", addr)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
