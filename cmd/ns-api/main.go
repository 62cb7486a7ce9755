package main

import (
	"McastSpectra/internal/config"
	"McastSpectra/internal/query"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Find the first enabled ClickHouse writer config
	var chCfg *config.ClickHouseConfig
	for _, writerDef := range cfg.Aggregator.Multicast.Writers {
		if writerDef.Enabled && writerDef.Type == "clickhouse" {
			chCfg = &writerDef.ClickHouse
			break
		}
	}

	if chCfg == nil {
		log.Fatalf("No enabled ClickHouse writer found in config. API server cannot start.")
	}

	// Initialize querier with the found config
	querier, err := query.NewClickHouseQuerier(*chCfg)
	if err != nil {
		log.Fatalf("Failed to create querier: %v", err)
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: newRouter(&APIHandler{querier: querier}),
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("API server exited.")
}

// APIHandler holds the dependencies for API handlers.
type APIHandler struct {
	querier query.Querier
}

func newRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/summary", h.summaryHandler).Methods("POST")
	r.HandleFunc("/api/v1/tasks/{task}/history", h.historyHandler).Methods("GET")
	return r
}

// summaryHandler handles run summary queries.
func (h *APIHandler) summaryHandler(w http.ResponseWriter, r *http.Request) {
	var req query.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := h.querier.Summaries(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query summaries: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

// historyHandler returns the stored snapshots of one stream, or of the
// aggregate when no dst is given. Query parameters: src, dst (ip:port),
// start, end (RFC3339) and limit.
func (h *APIHandler) historyHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseHistoryRequest(mux.Vars(r)["task"], r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.querier.History(r.Context(), req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query history: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func parseHistoryRequest(task string, r *http.Request) (query.HistoryRequest, error) {
	q := r.URL.Query()
	req := query.HistoryRequest{TaskName: task}

	var err error
	if v := q.Get("src"); v != "" {
		if req.SrcIP, req.SrcPort, err = splitAddrPort(v); err != nil {
			return req, fmt.Errorf("invalid src: %w", err)
		}
	}
	if v := q.Get("dst"); v != "" {
		if req.DstIP, req.DstPort, err = splitAddrPort(v); err != nil {
			return req, fmt.Errorf("invalid dst: %w", err)
		}
	}
	if req.SrcIP != "" && req.DstIP == "" {
		return req, fmt.Errorf("src requires dst")
	}
	if v := q.Get("start"); v != "" {
		if req.StartTime, err = time.Parse(time.RFC3339, v); err != nil {
			return req, fmt.Errorf("invalid start: %w", err)
		}
	}
	if v := q.Get("end"); v != "" {
		if req.EndTime, err = time.Parse(time.RFC3339, v); err != nil {
			return req, fmt.Errorf("invalid end: %w", err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
			return req, fmt.Errorf("invalid limit: %q", v)
		}
	}
	return req, nil
}

func splitAddrPort(s string) (string, uint16, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return "", 0, err
	}
	return ap.Addr().String(), ap.Port(), nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
