package api

import (
	"McastSpectra/internal/engine/impl/mcast/statistic"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TaskSummary is one entry of the task listing.
type TaskSummary struct {
	Name    string `json:"name"`
	Streams int    `json:"streams"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// Handler holds the dependencies for API handlers.
type Handler struct {
	source         StatsSource
	wsPushInterval time.Duration
}

// NewRouter wires the HTTP, WebSocket and metrics endpoints.
func NewRouter(source StatsSource, wsPushInterval time.Duration, metricsPath string, gatherer prometheus.Gatherer) *mux.Router {
	h := &Handler{source: source, wsPushInterval: wsPushInterval}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthHandler).Methods("GET")
	r.HandleFunc("/api/v1/tasks", h.tasksHandler).Methods("GET")
	r.HandleFunc("/api/v1/tasks/{task}/streams", h.streamsHandler).Methods("GET")
	r.HandleFunc("/api/v1/tasks/{task}/aggregate", h.aggregateHandler).Methods("GET")
	r.HandleFunc("/api/v1/reset", h.resetHandler).Methods("POST")
	r.HandleFunc("/ws", h.wsHandler)

	if metricsPath != "" && gatherer != nil {
		r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics:   true,
			MaxRequestsInFlight: 10,
		}))
	}
	return r
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) tasksHandler(w http.ResponseWriter, r *http.Request) {
	tasks := h.source.Tasks()
	summaries := make([]TaskSummary, 0, len(tasks))
	for _, task := range tasks {
		summary := TaskSummary{Name: task.Name()}
		if snap, ok := task.Snapshot().(statistic.Snapshot); ok {
			summary.Streams = len(snap.Streams)
			summary.Packets, summary.Bytes = snap.Totals()
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) streamsHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Streams)
}

func (h *Handler) aggregateHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if snap.Aggregate == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap.Aggregate)
}

func (h *Handler) resetHandler(w http.ResponseWriter, r *http.Request) {
	log.Printf("Reset requested by %s", r.RemoteAddr)
	h.source.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// lookup finds the stream snapshot of the task named in the route.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (statistic.Snapshot, bool) {
	name := mux.Vars(r)["task"]
	for _, task := range h.source.Tasks() {
		if task.Name() != name {
			continue
		}
		snap, ok := task.Snapshot().(statistic.Snapshot)
		if !ok {
			http.Error(w, "task does not produce stream statistics", http.StatusBadRequest)
			return snap, false
		}
		return snap, true
	}
	http.Error(w, "unknown task: "+name, http.StatusNotFound)
	return statistic.Snapshot{}, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
