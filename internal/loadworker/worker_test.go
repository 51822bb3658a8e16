package loadworker

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/storage/localfs"
)

func newFixture(t *testing.T) (*localfs.Backend, *metastore.Store) {
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	return backend, metastore.New(backend, logging.New(logging.ERROR, false))
}

func writeOtherItem(t *testing.T, backend *localfs.Backend, tableID, columnID, itemID int, rows [][]byte) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(len(rows))))
	for _, r := range rows {
		require.NoError(t, binary.Write(&buf, binary.BigEndian, int64(len(r))))
	}
	for _, r := range rows {
		buf.Write(r)
	}
	wf, err := backend.OpenWrite(metastore.ItemPath(tableID, columnID, itemID))
	require.NoError(t, err)
	require.NoError(t, wf.Append(buf.Bytes()))
	require.NoError(t, wf.Close())
}

// TestProcess_OtherColumn reads a single non-video table end to end
// through Process.
func TestProcess_OtherColumn(t *testing.T) {
	backend, meta := newFixture(t)
	ctx := context.Background()

	table := &catalog.Table{
		ID:      1,
		Name:    "labels",
		Columns: []catalog.Column{{ID: 0, Name: "label", Type: catalog.Other}},
		EndRows: []int64{3, 7},
	}
	require.NoError(t, meta.WriteTable(ctx, table))

	writeOtherItem(t, backend, 1, 0, 0, [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")})
	writeOtherItem(t, backend, 1, 0, 1, [][]byte{[]byte("d"), []byte("e"), []byte("f"), []byte("g")})

	w := New(backend, meta, logging.New(logging.ERROR, false))
	work := catalog.NewWork{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 1, StartRow: 0, EndRow: 7},
		Entry: catalog.LoadWorkEntry{Samples: []catalog.SampleWork{
			{TableID: 1, ColumnIDs: []int{0}, Rows: []int64{0, 1, 2, 3, 4, 5, 6}},
		}},
	}

	entry, err := w.Process(ctx, work)
	require.NoError(t, err)
	require.Equal(t, int64(0), entry.IOItemIndex)
	require.Equal(t, []catalog.ColumnType{catalog.Other}, entry.ColumnTypes)
	require.Len(t, entry.Columns, 1)
	got := entry.Columns[0]
	require.Equal(t, [][]byte{[]byte("a"), []byte("bb"), []byte("ccc"), []byte("d"), []byte("e"), []byte("f"), []byte("g")}, got)
}

// TestProcess_VideoColumnWithFrameInfoSideColumn exercises a strided read
// across a Video column plus its frame-info side column.
func TestProcess_VideoColumnWithFrameInfoSideColumn(t *testing.T) {
	backend, meta := newFixture(t)
	ctx := context.Background()

	table := &catalog.Table{
		ID:   2,
		Name: "frames",
		Columns: []catalog.Column{
			{ID: 0, Name: "video", Type: catalog.Video},
			{ID: 1, Name: "video_frame_info", Type: catalog.Other},
		},
		EndRows: []int64{100},
	}
	require.NoError(t, meta.WriteTable(ctx, table))

	keyframePositions := []int64{0, 30, 60, 90}
	keyframeByteOffsets := []int64{0, 1000, 2000, 3000}
	fileSize := int64(4000)

	require.NoError(t, meta.WriteVideoDescriptor(ctx, 2, 0, 0, &catalog.VideoDescriptor{
		Width: 1920, Height: 1080, FrameCount: 100,
		KeyframePositions:   keyframePositions,
		KeyframeByteOffsets: keyframeByteOffsets,
	}))

	videoBytes := make([]byte, fileSize)
	for i := range videoBytes {
		videoBytes[i] = byte(i % 251)
	}
	wf, err := backend.OpenWrite(metastore.ItemPath(2, 0, 0))
	require.NoError(t, err)
	require.NoError(t, wf.Append(videoBytes))
	require.NoError(t, wf.Close())

	w := New(backend, meta, logging.New(logging.ERROR, false))
	rows := []int64{0, 10, 40, 80}
	work := catalog.NewWork{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 2, StartRow: 0, EndRow: 100},
		Entry: catalog.LoadWorkEntry{Samples: []catalog.SampleWork{
			{TableID: 2, ColumnIDs: []int{0, 1}, Rows: rows},
		}},
	}

	entry, err := w.Process(ctx, work)
	require.NoError(t, err)
	require.Equal(t, []catalog.ColumnType{catalog.Video, catalog.Other}, entry.ColumnTypes)
	require.Len(t, entry.Columns, 2)

	var totalRequested int
	for _, row := range entry.Columns[0] {
		var args DecodeArgs
		require.NoError(t, gob.NewDecoder(bytes.NewReader(row)).Decode(&args))
		require.Equal(t, 1920, args.Width)
		totalRequested += len(args.RequestedFrames)
	}
	require.Equal(t, len(rows), totalRequested)

	require.Len(t, entry.Columns[1], len(rows))
	for _, row := range entry.Columns[1] {
		var fi FrameInfo
		require.NoError(t, gob.NewDecoder(bytes.NewReader(row)).Decode(&fi))
		require.Equal(t, 1080, fi.Height)
	}
}

// TestProcess_InvalidatesVideoIndexOnTableChange exercises the
// per-thread cache invalidation rule triggered by a table switch.
func TestProcess_InvalidatesVideoIndexOnTableChange(t *testing.T) {
	backend, meta := newFixture(t)
	ctx := context.Background()

	table := &catalog.Table{
		ID:      3,
		Name:    "labels",
		Columns: []catalog.Column{{ID: 0, Name: "label", Type: catalog.Other}},
		EndRows: []int64{2},
	}
	require.NoError(t, meta.WriteTable(ctx, table))
	writeOtherItem(t, backend, 3, 0, 0, [][]byte{[]byte("x"), []byte("y")})

	other := &catalog.Table{
		ID:      4,
		Name:    "labels2",
		Columns: []catalog.Column{{ID: 0, Name: "label", Type: catalog.Other}},
		EndRows: []int64{2},
	}
	require.NoError(t, meta.WriteTable(ctx, other))
	writeOtherItem(t, backend, 4, 0, 0, [][]byte{[]byte("p"), []byte("q")})

	w := New(backend, meta, logging.New(logging.ERROR, false))

	_, err := w.Process(ctx, catalog.NewWork{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 3, EndRow: 2},
		Entry:  catalog.LoadWorkEntry{Samples: []catalog.SampleWork{{TableID: 3, ColumnIDs: []int{0}, Rows: []int64{0, 1}}}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, w.lastTableID)

	_, err = w.Process(ctx, catalog.NewWork{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 4, EndRow: 2},
		Entry:  catalog.LoadWorkEntry{Samples: []catalog.SampleWork{{TableID: 4, ColumnIDs: []int{0}, Rows: []int64{0, 1}}}},
	})
	require.NoError(t, err)
	require.Equal(t, 4, w.lastTableID)
	require.Empty(t, w.videoIndex.entries)
}

// TestProcess_PreservesColumnOrderUnderConcurrentLoad exercises more
// columns than maxColumnConcurrency to confirm loadColumns' bounded
// fan-out still returns results in request order.
func TestProcess_PreservesColumnOrderUnderConcurrentLoad(t *testing.T) {
	backend, meta := newFixture(t)
	ctx := context.Background()

	numColumns := maxColumnConcurrency * 3
	columns := make([]catalog.Column, numColumns)
	columnIDs := make([]int, numColumns)
	for i := 0; i < numColumns; i++ {
		columns[i] = catalog.Column{ID: i, Name: fmt.Sprintf("col%d", i), Type: catalog.Other}
		columnIDs[i] = i
		writeOtherItem(t, backend, 5, i, 0, [][]byte{[]byte(fmt.Sprintf("v%d", i))})
	}

	table := &catalog.Table{ID: 5, Name: "wide", Columns: columns, EndRows: []int64{1}}
	require.NoError(t, meta.WriteTable(ctx, table))

	w := New(backend, meta, logging.New(logging.ERROR, false))
	work := catalog.NewWork{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 5, StartRow: 0, EndRow: 1},
		Entry: catalog.LoadWorkEntry{Samples: []catalog.SampleWork{
			{TableID: 5, ColumnIDs: columnIDs, Rows: []int64{0}},
		}},
	}

	entry, err := w.Process(ctx, work)
	require.NoError(t, err)
	require.Len(t, entry.Columns, numColumns)
	for i := 0; i < numColumns; i++ {
		require.Equal(t, [][]byte{[]byte(fmt.Sprintf("v%d", i))}, entry.Columns[i])
	}
}

// TestRun_StopsOnSentinel verifies the drain sentinel terminates the
// queue-consuming loop without error.
func TestRun_StopsOnSentinel(t *testing.T) {
	backend, meta := newFixture(t)
	w := New(backend, meta, logging.New(logging.ERROR, false))

	in := make(chan catalog.NewWork, 1)
	out := make(chan catalog.EvalWorkEntry, 1)
	in <- catalog.NewWork{IOItem: catalog.Sentinel}

	err := w.Run(context.Background(), in, out)
	require.NoError(t, err)
}
