// Copyright 2025 The fleetgov Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/saltysoup/ai-infra-scripts/internal/labeler"
)

// DefaultMaxBodyBytes bounds the size of one delivery.
const DefaultMaxBodyBytes = 1 << 20

// EventHandler labels the instance named by an audit log entry.
type EventHandler interface {
	HandleEvent(ctx context.Context, data []byte) (*labeler.Result, error)
}

// Server receives instance-creation audit entries and hands them to the labeler.
type Server struct {
	addr          string
	port          int
	handler       EventHandler
	webhookSecret string
	server        *http.Server
	rateLimiter   *RateLimiter
	metrics       http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRateLimit replaces the default per-subscription limit.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimiter = NewRateLimiter(limit, window)
	}
}

// RateLimiter provides per-subscription rate limiting
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewServer creates a new webhook server. An empty webhookSecret disables
// signature validation.
func NewServer(addr string, port int, handler EventHandler, webhookSecret string, opts ...Option) *Server {
	s := &Server{
		addr:          addr,
		port:          port,
		handler:       handler,
		webhookSecret: webhookSecret,
		rateLimiter:   NewRateLimiter(10, time.Second), // 10 requests per second per subscription
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRateLimiter allows limit requests per window for every key, refilling continuously.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	l, exists := rl.limiters[key]
	if !exists {
		l = rate.NewLimiter(rl.every, rl.burst)
		rl.limiters[key] = l
	}
	rl.mu.Unlock()

	return l.Allow()
}

// Handler returns the request router served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.addr, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Log.Info("Starting webhook server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Log.Info("Shutting down webhook server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, DefaultMaxBodyBytes))
	if err != nil {
		logger.Error(err, "Failed to read request body")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if s.webhookSecret != "" {
		if !ValidateSignature(payload, r.Header.Get(SignatureHeader), s.webhookSecret) {
			logger.Info("Invalid delivery signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	delivery, err := DecodeDelivery(payload)
	if err != nil {
		logger.Error(err, "Failed to decode delivery")
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if !s.rateLimiter.Allow(delivery.Source) {
		logger.Info("Rate limit exceeded", "subscription", delivery.Source)
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	ctx := log.IntoContext(r.Context(), logger.WithValues("subscription", delivery.Source, "messageID", delivery.MessageID))
	res, err := s.handler.HandleEvent(ctx, delivery.Data)
	switch {
	case errors.Is(err, labeler.ErrIgnoredEvent):
		w.WriteHeader(http.StatusOK)
	case labeler.IsBadTriggerPayload(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		logger.Error(err, "Failed to label instance")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case res != nil && res.Labeled:
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
