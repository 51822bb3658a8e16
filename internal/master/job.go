package master

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/progress"
	"github.com/framecast/videoengine/internal/tasksampler"
)

// NewJob validates, persists and dispatches params, blocking until every
// worker has finished. The database metadata write is delayed until every
// worker reports success, so a failed job leaves no orphaned table name
// reservation behind for a retry to collide with.
func (m *Master) NewJob(ctx context.Context, params catalog.JobParameters) (catalog.Result, error) {
	m.mu.Lock()
	if m.job != nil {
		m.mu.Unlock()
		return catalog.Errorf("a job is already in flight"), nil
	}
	workingDB := m.db.Clone()
	workers := append([]string(nil), m.workerAddrs...)
	m.mu.Unlock()

	inputTables, err := m.resolveInputTables(ctx, params)
	if err != nil {
		return catalog.Errorf("%v", err), nil
	}

	if err := dag.Validate(m.registry, workingDB, inputTables, params); err != nil {
		return catalog.Errorf("%v", err), nil
	}

	jobID := workingDB.AllocateJobID(params.Name)
	outputTables := make(map[string]*catalog.Table, len(params.Tasks))
	var totalSamples int64

	for _, task := range params.Tasks {
		dry, err := tasksampler.New(task, 0, params.IOItemSize, inputTables)
		if err != nil {
			return catalog.Errorf("task %q: %v", task.OutputTableName, err), nil
		}
		totalSamples += dry.TotalSamples()

		tableID := workingDB.AllocateTableID(task.OutputTableName)
		table := &catalog.Table{
			ID:      tableID,
			Name:    task.OutputTableName,
			Columns: outputColumns(task),
			EndRows: dry.EndRows(),
		}
		outputTables[task.OutputTableName] = table
		inputTables[task.OutputTableName] = table
	}

	if m.metrics != nil {
		m.metrics.JobsCreated.Inc()
	}

	job := &activeJob{
		descriptor: &catalog.JobDescriptor{ID: jobID, JobParameters: params},
		tables:     inputTables,
		tracker:    progress.NewTracker(totalSamples),
		nextTask:   -1,
	}
	job.totalSamples = totalSamples

	m.mu.Lock()
	m.job = job
	m.mu.Unlock()

	result := m.dispatch(ctx, jobID, params, workers)

	m.mu.Lock()
	defer m.mu.Unlock()
	if result.Success {
		m.db = workingDB
		for _, t := range outputTables {
			if err := m.meta.WriteTable(ctx, t); err != nil {
				m.job = nil
				return catalog.Errorf("persisting table %q: %v", t.Name, err), nil
			}
			if m.index != nil {
				if err := m.index.RecordTable(ctx, t.ID, t.Name); err != nil {
					m.log.Warnf("indexing table %q: %v", t.Name, err)
				}
			}
		}
		if err := m.meta.WriteJob(ctx, job.descriptor); err != nil {
			m.job = nil
			return catalog.Errorf("persisting job descriptor: %v", err), nil
		}
		if err := m.meta.WriteDatabase(ctx, m.db); err != nil {
			m.job = nil
			return catalog.Errorf("persisting database metadata: %v", err), nil
		}
		if m.metrics != nil {
			m.metrics.JobsSucceeded.Inc()
		}
	} else if m.metrics != nil {
		m.metrics.JobsFailed.Inc()
	}
	m.recordHistory(JobSummary{ID: jobID, Name: params.Name, Success: result.Success, Message: result.Message})
	if m.index != nil {
		if err := m.index.RecordJob(ctx, jobID, params.Name, result.Success, result.Message); err != nil {
			m.log.Warnf("indexing job %q: %v", params.Name, err)
		}
	}
	m.job = nil
	return result, nil
}

// resolveInputTables loads, from the currently committed database, every
// table named by any task's samples.
func (m *Master) resolveInputTables(ctx context.Context, params catalog.JobParameters) (map[string]*catalog.Table, error) {
	m.mu.Lock()
	db := m.db
	m.mu.Unlock()

	tables := make(map[string]*catalog.Table)
	for _, task := range params.Tasks {
		for _, sample := range task.Samples {
			if _, ok := tables[sample.TableName]; ok {
				continue
			}
			tableID, ok := db.TableIDs[sample.TableName]
			if !ok {
				continue // surfaced as a validation error, not a transport error
			}
			t, err := m.meta.ReadTable(ctx, tableID)
			if err != nil {
				return nil, fmt.Errorf("loading input table %q: %w", sample.TableName, err)
			}
			tables[sample.TableName] = t
		}
	}
	return tables, nil
}

// outputColumns derives a task's output schema from its terminal
// OutputTable op's declared inputs. Decoder and compute kernels aren't
// implemented here, so every produced column is typed Other; a
// Video-typed op output would need a kernel contract to say so.
func outputColumns(task catalog.Task) []catalog.Column {
	last := task.Ops[len(task.Ops)-1]
	cols := make([]catalog.Column, len(last.Inputs))
	for i, in := range last.Inputs {
		cols[i] = catalog.Column{ID: i, Name: in.Column, Type: catalog.Other}
	}
	return cols
}

// dispatch issues the NewJob RPC to every worker concurrently and blocks
// until all have replied. local_id/local_total shard workers that share
// one address, letting a single multi-GPU box claim its own slice of
// local resources.
//
// Each reply is inspected the instant it arrives, not after every worker
// has finished: a non-success reply sets job.lastFailed under m.mu right
// away, which is what makes nextWorkLocked start handing out the
// sentinel to every other worker still pulling NextWork. Waiting for
// p.Wait()-style join before looking at any result would let siblings of
// an immediately-failing worker keep draining real work for the rest of
// the job instead of fast-draining.
func (m *Master) dispatch(ctx context.Context, jobID int, params catalog.JobParameters, workers []string) catalog.Result {
	if len(workers) == 0 {
		return catalog.Errorf("no workers registered")
	}

	localTotal := make(map[string]int)
	for _, addr := range workers {
		localTotal[addr]++
	}
	localSeen := make(map[string]int)

	var resultsMu sync.Mutex
	failed := false
	var failure catalog.Result

	var wg conc.WaitGroup
	for _, addr := range workers {
		addr := addr
		localID := localSeen[addr]
		localSeen[addr]++
		assignment := JobAssignment{
			JobID:      jobID,
			Params:     params,
			LocalID:    localID,
			LocalTotal: localTotal[addr],
		}
		wg.Go(func() {
			result, err := m.dispatcher.DispatchJob(ctx, addr, assignment)
			if err != nil {
				result = catalog.Errorf("worker %s: %v", addr, err)
			}
			if result.Success {
				return
			}

			resultsMu.Lock()
			if !failed {
				failed = true
				failure = result
			}
			resultsMu.Unlock()

			m.mu.Lock()
			if m.job != nil {
				m.job.lastFailed = true
			}
			m.mu.Unlock()
		})
	}
	wg.Wait()

	if failed {
		return failure
	}
	return catalog.OK()
}
