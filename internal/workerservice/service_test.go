package workerservice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/dag"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/storage/localfs"
)

// collectingSink records every entry it receives, guarded by a mutex
// since drainJob's load threads call Save concurrently.
type collectingSink struct {
	mu      sync.Mutex
	entries []catalog.EvalWorkEntry
}

func (s *collectingSink) Save(ctx context.Context, entry catalog.EvalWorkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func newFakeMaster(t *testing.T, units []catalog.NewWork) *httptest.Server {
	var mu sync.Mutex
	idx := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if idx >= len(units) {
			writeJSON(w, http.StatusOK, catalog.NewWork{IOItem: catalog.Sentinel})
			return
		}
		work := units[idx]
		idx++
		writeJSON(w, http.StatusOK, work)
	}))
}

func TestService_HandleJob_DrainsUntilSentinel(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	meta := metastore.New(backend, logging.New(logging.ERROR, false))
	ctx := context.Background()

	table := &catalog.Table{
		ID:      1,
		Name:    "labels",
		Columns: []catalog.Column{{ID: 0, Name: "label", Type: catalog.Other}},
		EndRows: []int64{2},
	}
	require.NoError(t, meta.WriteTable(ctx, table))

	wf, err := backend.OpenWrite(metastore.ItemPath(1, 0, 0))
	require.NoError(t, err)
	require.NoError(t, wf.Append(encodeItem(t, [][]byte{[]byte("a"), []byte("b")})))
	require.NoError(t, wf.Close())

	units := []catalog.NewWork{{
		IOItem: catalog.IOItem{ItemID: 0, TableID: 1, StartRow: 0, EndRow: 2},
		Entry: catalog.LoadWorkEntry{Samples: []catalog.SampleWork{
			{TableID: 1, ColumnIDs: []int{0}, Rows: []int64{0, 1}},
		}},
	}}
	fakeMaster := newFakeMaster(t, units)
	defer fakeMaster.Close()

	masterClient := NewMasterClient(fakeMaster.URL, fakeMaster.Client())
	sink := &collectingSink{}
	svc := NewService(backend, meta, dag.NewRegistry(), masterClient, sink, logging.New(logging.ERROR, false), 2)

	r := mux.NewRouter()
	svc.RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	body, err := json.Marshal(dispatchJobRequest{JobID: 1, LocalID: 0, LocalTotal: 1})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/job", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result catalog.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.Success)

	require.Len(t, sink.entries, 1)
}

func TestService_HandleLoadOp_NotFound(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	meta := metastore.New(backend, logging.New(logging.ERROR, false))

	svc := NewService(backend, meta, dag.NewRegistry(), nil, &collectingSink{}, logging.New(logging.ERROR, false), 1)
	r := mux.NewRouter()
	svc.RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	body, err := json.Marshal(loadOpRequest{Path: "/nope.so", OpName: "Blur"})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/ops/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestService_HandleLoadOp_RegistersOp(t *testing.T) {
	backend, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	meta := metastore.New(backend, logging.New(logging.ERROR, false))
	wf, err := backend.OpenWrite("ops/blur.so")
	require.NoError(t, err)
	require.NoError(t, wf.Append([]byte("fake-shared-object")))
	require.NoError(t, wf.Close())

	registry := dag.NewRegistry()
	svc := NewService(backend, meta, registry, nil, &collectingSink{}, logging.New(logging.ERROR, false), 1)
	r := mux.NewRouter()
	svc.RegisterRoutes(r)
	server := httptest.NewServer(r)
	defer server.Close()

	body, err := json.Marshal(loadOpRequest{Path: "ops/blur.so", OpName: "Blur", DeviceTypes: []string{"cpu"}})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/ops/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	spec, ok := registry.Lookup("Blur")
	require.True(t, ok)
	require.Equal(t, []string{"cpu"}, spec.DeviceTypes)
}

// encodeItem builds the [u64 num_rows][u64 row_sizes[]] + concatenated
// blobs layout an Other-column item file uses.
func encodeItem(t *testing.T, rows [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(rows)))
	buf.Write(n[:])
	for _, row := range rows {
		var sz [8]byte
		binary.BigEndian.PutUint64(sz[:], uint64(len(row)))
		buf.Write(sz[:])
	}
	for _, row := range rows {
		buf.Write(row)
	}
	return buf.Bytes()
}
