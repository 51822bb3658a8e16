package workerservice

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc/pool"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/loadworker"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/storage"
)

// EvalSink consumes the load stage's output. The evaluate/save stage
// itself isn't implemented here; DiscardSink lets Service run end to end
// without one.
type EvalSink interface {
	Save(ctx context.Context, entry catalog.EvalWorkEntry) error
}

// DiscardSink drops every entry it receives.
type DiscardSink struct{}

// Save implements EvalSink.
func (DiscardSink) Save(ctx context.Context, entry catalog.EvalWorkEntry) error { return nil }

// Service is a worker process's HTTP surface: it receives NewJob/LoadOp
// dispatches from the master and, in response to NewJob, drains the job
// by running one or more loadworker.Worker load threads pulling from a
// MasterClient until the sentinel.
type Service struct {
	backend     storage.Backend
	meta        *metastore.Store
	registry    *dag.Registry
	master      *MasterClient
	sink        EvalSink
	log         *logging.Logger
	concurrency int
}

// NewService constructs a worker Service with concurrency load threads
// (at least 1).
func NewService(backend storage.Backend, meta *metastore.Store, registry *dag.Registry, masterClient *MasterClient, sink EvalSink, log *logging.Logger, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		backend: backend, meta: meta, registry: registry,
		master: masterClient, sink: sink, log: log.With("workerservice"),
		concurrency: concurrency,
	}
}

// RegisterRoutes registers this worker's routes.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/job", s.handleJob).Methods("POST")
	r.HandleFunc("/ops/load", s.handleLoadOp).Methods("POST")
}

func (s *Service) handleJob(w http.ResponseWriter, r *http.Request) {
	var req dispatchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := s.drainJob(r.Context(), req)
	if !result.Success {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// drainJob runs concurrency load threads against nodeID=req.LocalID until
// the master returns the sentinel, then waits for every in-flight unit to
// finish.
func (s *Service) drainJob(ctx context.Context, req dispatchJobRequest) catalog.Result {
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	for i := 0; i < s.concurrency; i++ {
		p.Go(func(ctx context.Context) error {
			worker := loadworker.New(s.backend, s.meta, s.log)
			for {
				work, err := s.master.NextWork(ctx, req.LocalID)
				if err != nil {
					return err
				}
				if work.IOItem.IsSentinel() {
					return nil
				}
				entry, err := worker.Process(ctx, work)
				if err != nil {
					return err
				}
				if err := s.sink.Save(ctx, entry); err != nil {
					return err
				}
			}
		})
	}
	if err := p.Wait(); err != nil {
		return catalog.Errorf("job %d: %v", req.JobID, err)
	}
	return catalog.OK()
}

func (s *Service) handleLoadOp(w http.ResponseWriter, r *http.Request) {
	var req loadOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if ok, err := s.backend.Exists(req.Path); err != nil {
		http.Error(w, "checking shared object path", http.StatusInternalServerError)
		return
	} else if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, catalog.Errorf("shared object not found: %s", req.Path))
		return
	}
	s.registry.Register(req.OpName, dag.KernelSpec{DeviceTypes: req.DeviceTypes})
	writeJSON(w, http.StatusOK, catalog.OK())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
