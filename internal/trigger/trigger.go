// Package trigger exposes an HMAC-authenticated HTTP endpoint that kicks
// off an out-of-band refresh cycle, e.g. from a git host webhook after a
// packaging repo changed.
package trigger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aurvet/aurvet/internal/config"
)

// Refresher runs one refresh cycle. Satisfied by updater.Engine.
type Refresher interface {
	Run(ctx context.Context) error
}

// Server implements the trigger HTTP server
type Server struct {
	cfg            *config.Config
	refresher      Refresher
	logger         *slog.Logger
	secret         []byte
	runCtx         context.Context // lifecycle context for triggered refreshes, set by Start
	refreshMu      sync.Mutex // guards refreshRunning and refreshPending
	refreshRunning bool       // whether a refresh is currently in progress
	refreshPending bool       // whether another refresh is needed after the current one
	debounce       *debouncer
}

// debouncer implements debouncing for trigger requests
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
}

// NewServer creates a new trigger server
func NewServer(cfg *config.Config, refresher Refresher, logger *slog.Logger) (*Server, error) {
	// Load trigger secret from file
	secret, err := os.ReadFile(cfg.Serve.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger secret: %w", err)
	}

	// Trim any whitespace/newlines from secret
	secret = []byte(strings.TrimSpace(string(secret)))

	s := &Server{
		cfg:       cfg,
		refresher: refresher,
		logger:    logger,
		secret:    secret,
		runCtx:    context.Background(),
	}

	// Initialize debouncer with 2 second delay
	s.debounce = &debouncer{
		delay: 2 * time.Second,
	}

	return s, nil
}

// Start starts the trigger HTTP server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	// Triggered refreshes outlive their HTTP requests but must still stop
	// with the server.
	s.runCtx = ctx

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleTrigger)

	server := &http.Server{
		Addr:              s.cfg.Serve.ListenAddr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("trigger server starting", "addr", s.cfg.Serve.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down trigger server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleTrigger handles incoming trigger requests. The payload itself is
// not interpreted; a request with a valid signature means "something on the
// packaging side changed, look again".
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	// Only accept POST requests
	if r.Method != http.MethodPost {
		s.logger.Warn("rejecting non-POST request", "method", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Read body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MB limit
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		http.Error(w, "Failed to read body", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !s.verifySignature(body, signature) {
		s.logger.Warn("rejecting request with invalid signature")
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	s.logger.Info("trigger accepted", "remote", r.RemoteAddr)

	// Trigger debounced refresh
	s.debounce.trigger(func() {
		s.performRefresh(s.runCtx)
	})

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Refresh triggered\n")
}

// verifySignature verifies the request HMAC signature
func (s *Server) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Signature format: sha256=<hex>
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	// Compute expected signature
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

// performRefresh executes the refresh cycle with single-flight semantics.
// If a cycle is already in progress, at most one additional run is queued;
// further concurrent requests are dropped to avoid unbounded goroutine pile-up.
func (s *Server) performRefresh(ctx context.Context) {
	s.refreshMu.Lock()
	if s.refreshRunning {
		s.refreshPending = true
		s.refreshMu.Unlock()
		s.logger.Info("refresh already in progress, queuing pending re-run")
		return
	}
	s.refreshRunning = true
	s.refreshMu.Unlock()

	for {
		s.logger.Info("performing triggered refresh")

		if err := s.refresher.Run(ctx); err != nil {
			s.logger.Error("refresh failed", "error", err)
		} else {
			s.logger.Info("refresh completed")
		}

		// Atomically check whether another refresh was requested while we
		// were running. If not, release the running slot and stop; if yes,
		// clear the flag and loop to service that one pending request.
		s.refreshMu.Lock()
		if !s.refreshPending {
			s.refreshRunning = false
			s.refreshMu.Unlock()
			break
		}
		s.refreshPending = false
		s.refreshMu.Unlock()

		s.logger.Info("re-running refresh due to pending request")
	}
}

// trigger schedules the callback to run after the debounce delay
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		d.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
}
