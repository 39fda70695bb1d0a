package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce       sync.Once
	serverMutex    sync.Mutex
	currentSrv     *http.Server
	triggerMutex   sync.RWMutex
	triggerChannel chan os.Signal

	healthMutex  sync.RWMutex
	lastRunError string
	lastRunAt    time.Time
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initAPIMetrics()

		registerSweepMetrics()
		registerAPIMetrics()

		// Present in /metrics before the first run completes
		LastRunTimestamp.Set(0)
	})
}

// SetTriggerChannel sets the channel used to request an immediate sweep
func SetTriggerChannel(ch chan os.Signal) {
	triggerMutex.Lock()
	defer triggerMutex.Unlock()
	triggerChannel = ch
}

// SetRunResult records the outcome of the latest run for /health
func SetRunResult(err error) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	lastRunAt = time.Now()
	if err != nil {
		lastRunError = err.Error()
	} else {
		lastRunError = ""
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Healthy   bool   `json:"healthy"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	healthMutex.RLock()
	resp := healthResponse{Status: "ok", Healthy: true, LastError: lastRunError}
	if !lastRunAt.IsZero() {
		resp.LastRun = lastRunAt.UTC().Format(time.RFC3339)
	}
	healthMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if resp.LastError != "" {
		resp.Status = "degraded"
		resp.Healthy = false
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	triggerMutex.RLock()
	ch := triggerChannel
	triggerMutex.RUnlock()

	if ch == nil {
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
		return
	}

	select {
	case ch <- syscall.SIGUSR1:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Sweep triggered"))
	default:
		http.Error(w, "Trigger already pending", http.StatusServiceUnavailable)
	}
}

// NewMux returns the handler tree served by StartServer:
// /metrics (Prometheus), /health, /trigger and, when api is non-nil, /api/
func NewMux(api http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", instrument("health", handleHealth))
	mux.HandleFunc("/trigger", instrument("trigger", handleTrigger))
	if api != nil {
		mux.Handle("/api/", instrument("api", api.ServeHTTP))
	}
	return mux
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *log.Logger, api http.Handler) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(api),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}
