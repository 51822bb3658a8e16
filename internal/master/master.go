// Package master implements job coordination: worker registration, job
// validation and dispatch, and the NextWork state machine that hands
// work units to registered workers.
package master

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/metastore/sqlstore"
	"github.com/framecast/videoengine/internal/metrics"
	"github.com/framecast/videoengine/internal/progress"
	"github.com/framecast/videoengine/internal/resources"
	"github.com/framecast/videoengine/internal/storage"
	"github.com/framecast/videoengine/internal/tasksampler"
)

// Dispatcher issues the NewJob RPC to one worker and blocks until that
// worker has drained the job (received the NextWork sentinel and
// finished processing everything before it). Implemented by
// internal/workerservice.Client against the real HTTP surface; tests
// substitute a fake.
type Dispatcher interface {
	DispatchJob(ctx context.Context, workerAddr string, req JobAssignment) (catalog.Result, error)
	LoadOp(ctx context.Context, workerAddr, path, opName string, deviceTypes []string) (catalog.Result, error)
}

// JobAssignment is the payload sent to one worker's NewJob RPC.
type JobAssignment struct {
	JobID      int
	Params     catalog.JobParameters
	LocalID    int
	LocalTotal int
	MasterAddr string
}

// activeJob is the master's view of the one job currently in flight.
// NextWork is serialized under a single mutex; Master holds that mutex
// and activeJob is only ever touched while holding it.
type activeJob struct {
	descriptor *catalog.JobDescriptor
	tables     map[string]*catalog.Table // every input and output table of the job, by name
	tracker    *progress.Tracker

	nextTask    int
	lastFailed  bool
	samplesLeft int64
	sampler     *tasksampler.TaskSampler

	totalSamplesUsed int64
	totalSamples     int64
}

// Master coordinates one in-flight job across registered workers.
type Master struct {
	mu sync.Mutex

	backend    storage.Backend
	meta       *metastore.Store
	registry   *dag.Registry
	log        *logging.Logger
	metrics    *metrics.Metrics
	dispatcher Dispatcher

	db              *catalog.Database
	workerAddrs     []string
	workerResources map[string]resources.Snapshot
	index           sqlstore.Index

	job     *activeJob
	history []JobSummary
}

// JobSummary is one completed job's outcome, kept in memory for GET /jobs
// and `videoenginectl jobs list`. History is capped at historyLimit entries, oldest dropped
// first - it is a convenience view, not the metadata of record (that
// lives in metastore, keyed by job id).
type JobSummary struct {
	ID      int
	Name    string
	Success bool
	Message string
}

const historyLimit = 100

// New constructs a Master over an already-ingested (or empty) database.
func New(backend storage.Backend, meta *metastore.Store, registry *dag.Registry, dispatcher Dispatcher, m *metrics.Metrics, log *logging.Logger, db *catalog.Database) *Master {
	return &Master{
		backend:         backend,
		meta:            meta,
		registry:        registry,
		dispatcher:      dispatcher,
		metrics:         m,
		log:             log.With("master"),
		db:              db,
		workerResources: make(map[string]resources.Snapshot),
	}
}

// SetDispatcher replaces the dispatcher used for worker RPCs. Production
// wiring constructs the HTTP-backed dispatcher after the Master it talks
// to already exists, so New accepts nil and callers set it once before
// serving traffic.
func (m *Master) SetDispatcher(d Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher = d
}

// SetIndex attaches an optional queryable secondary index. When set, every
// completed job and the output tables of every successful job are mirrored
// into it; Master's
// in-memory Database and history remain the source of truth regardless -
// the index exists for cross-restart and cross-replica querying, not
// correctness.
func (m *Master) SetIndex(idx sqlstore.Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = idx
}

// Workers returns the currently registered worker addresses, in
// registration (node id) order.
func (m *Master) Workers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.workerAddrs...)
}

// WorkerDetail is one registered worker's address and last self-reported
// hardware snapshot (zero-valued until RecordWorkerResources is called for
// that address).
type WorkerDetail struct {
	NodeID    int
	Address   string
	Resources resources.Snapshot
}

// WorkerDetails returns every registered worker with whatever resource
// snapshot it last reported, in registration order.
func (m *Master) WorkerDetails() []WorkerDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkerDetail, len(m.workerAddrs))
	for i, addr := range m.workerAddrs {
		out[i] = WorkerDetail{NodeID: i, Address: addr, Resources: m.workerResources[addr]}
	}
	return out
}

// RecordWorkerResources stores addr's most recently reported hardware
// snapshot, overwriting any previous report. It does not validate that
// addr is a registered worker - a report racing ahead of registration is
// harmless and simply sits unused.
func (m *Master) RecordWorkerResources(addr string, snap resources.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workerResources[addr] = snap
}

// History returns completed job summaries, most recent first.
func (m *Master) History() []JobSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobSummary, len(m.history))
	for i, h := range m.history {
		out[len(m.history)-1-i] = h
	}
	return out
}

func (m *Master) recordHistory(s JobSummary) {
	m.history = append(m.history, s)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

// RegisterWorker appends addr to the worker list and returns its node id
// (the list's new length minus one).
func (m *Master) RegisterWorker(addr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workerAddrs = append(m.workerAddrs, addr)
	if m.metrics != nil {
		m.metrics.WorkersRegistered.Set(float64(len(m.workerAddrs)))
	}
	m.log.Infof("worker registered: addr=%s node_id=%d", addr, len(m.workerAddrs)-1)
	return len(m.workerAddrs) - 1
}

// IngestVideos delegates to the (external, out-of-scope) ingest
// subsystem. This stub reports every path as failed so callers don't
// mistake a no-op for success. Every call gets its own correlation id so
// the resulting failure messages and log line can be tied back together
// even when several ingest requests are in flight against the same
// master at once.
func (m *Master) IngestVideos(ctx context.Context, tableNames, paths []string) []string {
	requestID := uuid.NewString()
	m.log.Infof("ingest request %s: tables=%v paths=%d", requestID, tableNames, len(paths))

	failures := make([]string, len(paths))
	for i, p := range paths {
		failures[i] = fmt.Sprintf("[%s] %s: ingest subsystem not available in this build", requestID, p)
	}
	return failures
}

// Ping reports liveness.
func (m *Master) Ping() catalog.Result {
	return catalog.OK()
}

// LoadOp verifies the shared-object path exists, registers it against the
// local op registry, and forwards it to every worker. Real dynamic
// loading of the .so isn't implemented here; this records the op's
// declared device types, which is the only part of loading that
// validation and the workers' own registries observe.
func (m *Master) LoadOp(ctx context.Context, path, opName string, deviceTypes []string) catalog.Result {
	if ok, err := m.backend.Exists(path); err != nil {
		return catalog.Errorf("checking shared object %s: %v", path, err)
	} else if !ok {
		return catalog.Errorf("shared object not found: %s", path)
	}

	m.registry.Register(opName, dag.KernelSpec{DeviceTypes: deviceTypes})

	m.mu.Lock()
	workers := append([]string(nil), m.workerAddrs...)
	m.mu.Unlock()

	for _, addr := range workers {
		if res, err := m.dispatcher.LoadOp(ctx, addr, path, opName, deviceTypes); err != nil {
			return catalog.Errorf("forwarding op %s to worker %s: %v", opName, addr, err)
		} else if !res.Success {
			return res
		}
	}
	return catalog.OK()
}
