// Package loadworker implements the I/O-bound load stage: for each
// NewWork unit it fetches encoded-video byte ranges (aligned to keyframe
// boundaries) and plain row-oriented byte ranges from immutable item
// files, and forwards a decode-ready EvalWorkEntry to the evaluate stage.
//
// One Worker is one load thread: it owns its own storage.Backend handle
// and metadata/video-index caches, and is never shared across goroutines.
package loadworker

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/sampler"
	"github.com/framecast/videoengine/internal/storage"
)

// maxColumnConcurrency bounds how many columns of one sample window a
// Worker loads at once. Each column load is its own blocking read against
// the storage backend, so unbounded fan-out would let one sample window
// with many columns saturate backend file handles.
const maxColumnConcurrency = 4

// Worker is one load thread.
type Worker struct {
	backend storage.Backend
	meta    *metastore.Store
	log     *logging.Logger

	tableCache  map[int]*catalog.Table
	videoIndex  *videoIndexCache
	lastTableID int
}

// New returns a load thread bound to its own backend handle.
func New(backend storage.Backend, meta *metastore.Store, log *logging.Logger) *Worker {
	return &Worker{
		backend:     backend,
		meta:        meta,
		log:         log,
		tableCache:  make(map[int]*catalog.Table),
		videoIndex:  newVideoIndexCache(),
		lastTableID: -1,
	}
}

// Run pops NewWork from in and pushes EvalWorkEntry to out until in is
// closed or yields the item_id=-1 sentinel, whichever comes first. Both
// channels are bounded blocking queues; the caller picks their capacity.
func (w *Worker) Run(ctx context.Context, in <-chan catalog.NewWork, out chan<- catalog.EvalWorkEntry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case work, ok := <-in:
			if !ok || work.IOItem.IsSentinel() {
				return nil
			}
			entry, err := w.Process(ctx, work)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- entry:
			}
		}
	}
}

// Process loads one NewWork unit into an EvalWorkEntry.
func (w *Worker) Process(ctx context.Context, work catalog.NewWork) (catalog.EvalWorkEntry, error) {
	if work.IOItem.TableID != w.lastTableID {
		w.videoIndex.invalidate()
		w.lastTableID = work.IOItem.TableID
	}

	entry := catalog.EvalWorkEntry{IOItemIndex: work.IOItem.ItemID}
	if len(work.Entry.Samples) > 0 {
		entry.WarmupRows = int64(len(work.Entry.Samples[0].WarmupRows))
	}

	for _, sw := range work.Entry.Samples {
		table, err := w.tableFor(ctx, sw.TableID)
		if err != nil {
			return catalog.EvalWorkEntry{}, err
		}

		rows := make([]int64, 0, len(sw.WarmupRows)+len(sw.Rows))
		rows = append(rows, sw.WarmupRows...)
		rows = append(rows, sw.Rows...)

		intervals, err := sampler.SliceIntoRowIntervals(table.EndRows, rows)
		if err != nil {
			return catalog.EvalWorkEntry{}, fmt.Errorf("loadworker: table %q: %w", table.Name, err)
		}

		colRows, colTypes, err := w.loadColumns(ctx, table, sw.ColumnIDs, intervals, rows)
		if err != nil {
			return catalog.EvalWorkEntry{}, err
		}
		for i, rows := range colRows {
			entry.Columns = append(entry.Columns, rows)
			entry.ColumnTypes = append(entry.ColumnTypes, colTypes[i])
			entry.ColumnHandles = append(entry.ColumnHandles, catalog.CPU)
		}
	}

	return entry, nil
}

// loadColumns loads every column in columnIDs concurrently, bounded by
// maxColumnConcurrency, and returns results in the same order as
// columnIDs regardless of completion order.
func (w *Worker) loadColumns(ctx context.Context, table *catalog.Table, columnIDs []int, intervals sampler.RowIntervals, rows []int64) ([][][]byte, []catalog.ColumnType, error) {
	results := make([][][]byte, len(columnIDs))
	types := make([]catalog.ColumnType, len(columnIDs))

	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxColumnConcurrency)
	for i, columnID := range columnIDs {
		i, columnID := i, columnID
		col, ok := table.ColumnByID(columnID)
		if !ok {
			return nil, nil, fmt.Errorf("loadworker: table %q has no column id %d", table.Name, columnID)
		}
		types[i] = col.Type

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			var colRows [][]byte
			var err error
			switch {
			case col.Type == catalog.Video:
				colRows, err = w.loadVideoColumn(ctx, table.ID, columnID, intervals)
			case catalog.IsFrameInfoSideColumn(table.Columns, columnID):
				colRows, err = w.loadFrameInfoColumn(ctx, table.ID, columnID-1, intervals, rows)
			default:
				colRows, err = w.loadOtherColumn(table.ID, columnID, intervals)
			}
			if err != nil {
				return err
			}
			results[i] = colRows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, types, nil
}

func (w *Worker) tableFor(ctx context.Context, tableID int) (*catalog.Table, error) {
	if t, ok := w.tableCache[tableID]; ok {
		return t, nil
	}
	t, err := w.meta.ReadTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("loadworker: read table %d metadata: %w", tableID, err)
	}
	w.tableCache[tableID] = t
	return t, nil
}

// loadVideoColumn emits one serialized DecodeArgs row per video-interval
// of each item touched by intervals.
func (w *Worker) loadVideoColumn(ctx context.Context, tableID, columnID int, intervals sampler.RowIntervals) ([][]byte, error) {
	var out [][]byte
	for k, itemID := range intervals.ItemIDs {
		idx, err := w.videoIndex.get(ctx, w.backend, w.meta, tableID, columnID, itemID)
		if err != nil {
			return nil, err
		}

		vi, err := sampler.SliceIntoVideoIntervals(
			idx.keyframePositions[:len(idx.keyframePositions)-1],
			idx.keyframePositions[len(idx.keyframePositions)-1],
			intervals.ValidOffsets[k],
		)
		if err != nil {
			return nil, fmt.Errorf("loadworker: video item %d: %w", itemID, err)
		}

		for vk, span := range vi.KeyframeIndexIntervals {
			start, end := span[0], span[1]
			byteStart := idx.keyframeByteOffsets[start]
			byteEnd := idx.keyframeByteOffsets[end]

			buf := make([]byte, byteEnd-byteStart)
			if err := idx.file.ReadAt(buf, byteStart); err != nil {
				return nil, fmt.Errorf("loadworker: read video item %d bytes [%d,%d): %w", itemID, byteStart, byteEnd, err)
			}

			args := DecodeArgs{
				Width:           idx.width,
				Height:          idx.height,
				StartFrame:      idx.keyframePositions[start],
				EndFrame:        idx.keyframePositions[end],
				RequestedFrames: vi.ValidFrames[vk],
				EncodedBytes:    buf,
			}
			for kf := start + 1; kf < end; kf++ {
				args.Intermediate = append(args.Intermediate, KeyframeRef{
					Position:         idx.keyframePositions[kf],
					ByteOffsetInSpan: idx.keyframeByteOffsets[kf] - byteStart,
				})
			}

			row, err := encodeGob(args)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
	}
	return out, nil
}

// loadFrameInfoColumn emits one serialized FrameInfo row per requested
// frame - not per interval - since the side column carries per-frame
// metadata, not per-decode-unit metadata.
func (w *Worker) loadFrameInfoColumn(ctx context.Context, tableID, videoColumnID int, intervals sampler.RowIntervals, rows []int64) ([][]byte, error) {
	out := make([][]byte, 0, len(rows))
	for k, itemID := range intervals.ItemIDs {
		idx, err := w.videoIndex.get(ctx, w.backend, w.meta, tableID, videoColumnID, itemID)
		if err != nil {
			return nil, err
		}
		for range intervals.ValidOffsets[k] {
			row, err := encodeGob(FrameInfo{Width: idx.width, Height: idx.height})
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func (w *Worker) loadOtherColumn(tableID, columnID int, intervals sampler.RowIntervals) ([][]byte, error) {
	var out [][]byte
	for k, itemID := range intervals.ItemIDs {
		f, err := w.backend.OpenRead(metastore.ItemPath(tableID, columnID, itemID))
		if err != nil {
			return nil, fmt.Errorf("loadworker: open item (table=%d column=%d item=%d): %w", tableID, columnID, itemID, err)
		}

		header, err := readOtherItemHeader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		itemStart, itemEnd := intervals.ItemIntervals[k][0], intervals.ItemIntervals[k][1]
		rows, err := readOtherItemRows(f, header, itemStart, itemEnd, intervals.ValidOffsets[k])
		f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("loadworker: encode: %w", err)
	}
	return buf.Bytes(), nil
}
