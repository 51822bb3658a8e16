// Package masterapi exposes internal/master.Master over HTTP/JSON, in the
// route-registration and handler style of shared/pkg/api/master.go: one
// gorilla/mux router, one handler method per RPC, http.Error for failures.
package masterapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/master"
	"github.com/framecast/videoengine/internal/resources"
)

// Handler wraps a Master with its HTTP surface.
type Handler struct {
	m   *master.Master
	log *logging.Logger
}

// NewHandler constructs a Handler over m.
func NewHandler(m *master.Master, log *logging.Logger) *Handler {
	return &Handler{m: m, log: log.With("masterapi")}
}

// RegisterRoutes registers every route this handler serves.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/workers/register", h.RegisterWorker).Methods("POST")
	r.HandleFunc("/workers", h.ListWorkers).Methods("GET")
	r.HandleFunc("/ingest", h.IngestVideos).Methods("POST")
	r.HandleFunc("/jobs", h.NewJob).Methods("POST")
	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/work/next", h.NextWork).Methods("GET")
	r.HandleFunc("/ops/load", h.LoadOp).Methods("POST")
	r.HandleFunc("/ping", h.Ping).Methods("GET")
}

type workerInfo struct {
	NodeID        int    `json:"node_id"`
	Address       string `json:"address"`
	CPUThreads    int    `json:"cpu_threads,omitempty"`
	RAMTotalBytes int64  `json:"ram_total_bytes,omitempty"`
}

// ListWorkers handles GET /workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	details := h.m.WorkerDetails()
	out := make([]workerInfo, len(details))
	for i, d := range details {
		out[i] = workerInfo{NodeID: d.NodeID, Address: d.Address, CPUThreads: d.Resources.CPUThreads, RAMTotalBytes: d.Resources.RAMTotalBytes}
	}
	writeJSON(w, http.StatusOK, out)
}

type jobSummaryResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ListJobs handles GET /jobs, reporting completed jobs most recent first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	history := h.m.History()
	out := make([]jobSummaryResponse, len(history))
	for i, s := range history {
		out[i] = jobSummaryResponse{ID: s.ID, Name: s.Name, Success: s.Success, Message: s.Message}
	}
	writeJSON(w, http.StatusOK, out)
}

type registerWorkerRequest struct {
	Address   string             `json:"address"`
	Resources resources.Snapshot `json:"resources"`
}

type registerWorkerResponse struct {
	NodeID int `json:"node_id"`
}

// RegisterWorker handles POST /workers/register. Resources is optional - a
// worker that omits it registers as before, and its hardware is reported
// as zero by GET /workers.
func (h *Handler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Address == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}
	nodeID := h.m.RegisterWorker(req.Address)
	h.m.RecordWorkerResources(req.Address, req.Resources)
	writeJSON(w, http.StatusCreated, registerWorkerResponse{NodeID: nodeID})
}

type ingestRequest struct {
	TableNames []string `json:"table_names"`
	Paths      []string `json:"paths"`
}

type ingestResponse struct {
	Failures []string `json:"failures"`
}

// IngestVideos handles POST /ingest.
func (h *Handler) IngestVideos(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.TableNames) != len(req.Paths) {
		http.Error(w, "table_names and paths must have the same length", http.StatusBadRequest)
		return
	}
	failures := h.m.IngestVideos(r.Context(), req.TableNames, req.Paths)
	writeJSON(w, http.StatusOK, ingestResponse{Failures: failures})
}

// NewJob handles POST /jobs.
func (h *Handler) NewJob(w http.ResponseWriter, r *http.Request) {
	var params catalog.JobParameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.m.NewJob(r.Context(), params)
	if err != nil {
		h.log.Errorf("NewJob %q: %v", params.Name, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// NextWork handles GET /work/next?node_id=N.
func (h *Handler) NextWork(w http.ResponseWriter, r *http.Request) {
	nodeID, err := intQueryParam(r, "node_id")
	if err != nil {
		http.Error(w, "node_id must be an integer", http.StatusBadRequest)
		return
	}
	work := h.m.NextWork(nodeID)
	writeJSON(w, http.StatusOK, work)
}

type loadOpRequest struct {
	Path        string   `json:"path"`
	OpName      string   `json:"op_name"`
	DeviceTypes []string `json:"device_types"`
}

// LoadOp handles POST /ops/load.
func (h *Handler) LoadOp(w http.ResponseWriter, r *http.Request) {
	var req loadOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" || req.OpName == "" {
		http.Error(w, "path and op_name are required", http.StatusBadRequest)
		return
	}
	result := h.m.LoadOp(r.Context(), req.Path, req.OpName, req.DeviceTypes)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.m.Ping())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func intQueryParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	var n int
	_, err := fmt.Sscanf(raw, "%d", &n)
	return n, err
}
