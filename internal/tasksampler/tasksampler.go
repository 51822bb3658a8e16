// Package tasksampler enumerates the NewWork units for one Task. It wraps
// a Task plus the table metadata it reads from, resolving sampler
// functions into concrete, ordered row lists once at construction time and
// then slicing those lists into io_item_size-sized work units.
package tasksampler

import (
	"fmt"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/samplerfunc"
)

// resolvedSample is one Sample with its full row enumeration and resolved
// column ids already computed.
type resolvedSample struct {
	tableID   int
	columnIDs []int
	rows      []int64
}

// TaskSampler is a stateful enumerator of NewWork for one Task. A
// TaskSampler must be validated (via New, which validates eagerly) before
// total_samples/next_work are trustworthy; once next_work or construction
// surfaces an error, the sampler is "poisoned" and every subsequent call
// returns the same non-success result.
type TaskSampler struct {
	outputTableID int
	ioItemSize    int64
	warmupSize    int64
	samples       []resolvedSample
	numLiveRows   int64

	cursor  int64 // index into the logical row sequence, i.e. samples[0].rows
	nextID  int64
	err     error
	invalid bool
}

// New resolves task against tableMetas (by name) and the already-allocated
// outputTableID, and validates it. A non-nil error here is a validation
// error: bad table reference, empty sample, ill-formed sampler
// parameters.
func New(task catalog.Task, outputTableID int, ioItemSize int64, tableMetas map[string]*catalog.Table) (*TaskSampler, error) {
	if len(task.Samples) == 0 {
		return nil, fmt.Errorf("tasksampler: task %q declares zero samples", task.OutputTableName)
	}
	if ioItemSize <= 0 {
		return nil, fmt.Errorf("tasksampler: io_item_size must be positive")
	}

	ts := &TaskSampler{outputTableID: outputTableID, ioItemSize: ioItemSize}

	for _, op := range task.Ops {
		if op.WarmupSize > ts.warmupSize {
			ts.warmupSize = op.WarmupSize
		}
	}

	for si, s := range task.Samples {
		if len(s.Columns) == 0 {
			return nil, fmt.Errorf("tasksampler: sample %d of task %q declares zero columns", si, task.OutputTableName)
		}
		table, ok := tableMetas[s.TableName]
		if !ok {
			return nil, fmt.Errorf("tasksampler: task %q references non-existent table %q", task.OutputTableName, s.TableName)
		}
		colIDs, err := table.ColumnIDs(s.Columns)
		if err != nil {
			return nil, fmt.Errorf("tasksampler: %w", err)
		}
		rows, err := samplerfunc.Enumerate(s.SamplerName, table.NumRows(), s.SamplerArgs)
		if err != nil {
			return nil, fmt.Errorf("tasksampler: sample %d of task %q has ill-formed sampler parameters: %w", si, task.OutputTableName, err)
		}
		ts.samples = append(ts.samples, resolvedSample{tableID: table.ID, columnIDs: colIDs, rows: rows})
	}

	n := int64(len(ts.samples[0].rows))
	for i, s := range ts.samples {
		if int64(len(s.rows)) != n {
			return nil, fmt.Errorf("tasksampler: task %q's samples enumerate different row counts (sample 0: %d, sample %d: %d)", task.OutputTableName, n, i, len(s.rows))
		}
	}
	ts.numLiveRows = n

	return ts, nil
}

// TotalSamples returns the number of NewWork units this task will emit.
func (ts *TaskSampler) TotalSamples() int64 {
	if ts.numLiveRows == 0 {
		return 0
	}
	n := ts.numLiveRows / ts.ioItemSize
	if ts.numLiveRows%ts.ioItemSize != 0 {
		n++
	}
	return n
}

// EndRows computes, without consuming sampler state, the end_rows array
// the output table's descriptor must be persisted with before any worker
// RPC is issued: a dry run of the task sampler. Each work unit becomes
// exactly one item of the output table.
func (ts *TaskSampler) EndRows() []int64 {
	total := ts.TotalSamples()
	if total == 0 {
		return nil
	}
	endRows := make([]int64, 0, total)
	var cum int64
	for i := int64(0); i < total; i++ {
		start := i * ts.ioItemSize
		end := start + ts.ioItemSize
		if end > ts.numLiveRows {
			end = ts.numLiveRows
		}
		cum += end - start
		endRows = append(endRows, cum)
	}
	return endRows
}

// NextWork emits the next unit into out. It returns ok=false, with no
// error, once the task is exhausted; it returns an error only if the
// sampler has been poisoned by a prior runtime failure (there are none in
// this implementation once New has succeeded, but the slot is kept so a
// poisoned sampler keeps returning the same failure on every subsequent
// call instead of silently resuming).
func (ts *TaskSampler) NextWork(out *catalog.NewWork) (ok bool, err error) {
	if ts.invalid {
		return false, ts.err
	}
	if ts.cursor >= ts.numLiveRows {
		return false, nil
	}

	liveStart := ts.cursor
	liveEnd := liveStart + ts.ioItemSize
	if liveEnd > ts.numLiveRows {
		liveEnd = ts.numLiveRows
	}
	warmupStart := liveStart - ts.warmupSize
	if warmupStart < 0 {
		warmupStart = 0
	}

	entry := catalog.LoadWorkEntry{Samples: make([]catalog.SampleWork, len(ts.samples))}
	for i, s := range ts.samples {
		entry.Samples[i] = catalog.SampleWork{
			TableID:    s.tableID,
			ColumnIDs:  append([]int(nil), s.columnIDs...),
			WarmupRows: append([]int64(nil), s.rows[warmupStart:liveStart]...),
			Rows:       append([]int64(nil), s.rows[liveStart:liveEnd]...),
		}
	}

	out.IOItem = catalog.IOItem{
		ItemID:   ts.nextID,
		TableID:  ts.outputTableID,
		StartRow: liveStart,
		EndRow:   liveEnd,
	}
	out.Entry = entry

	ts.nextID++
	ts.cursor = liveEnd
	return true, nil
}
