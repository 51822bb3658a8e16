package workerservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/framecast/videoengine/internal/catalog"
)

func TestMasterClient_NextWork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/work/next", r.URL.Path)
		require.Equal(t, "3", r.URL.Query().Get("node_id"))
		writeJSON(w, http.StatusOK, catalog.NewWork{
			IOItem: catalog.IOItem{ItemID: 5, TableID: 1, StartRow: 0, EndRow: 10},
		})
	}))
	defer server.Close()

	c := NewMasterClient(server.URL, server.Client())
	work, err := c.NextWork(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, int64(5), work.IOItem.ItemID)
}

func TestMasterClient_NextWork_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewMasterClient(server.URL, server.Client())
	_, err := c.NextWork(context.Background(), 0)
	require.Error(t, err)
}

func TestMasterClient_NextWork_URLEncodesNodeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := url.ParseQuery(r.URL.RawQuery)
		require.NoError(t, err)
		require.Equal(t, "0", q.Get("node_id"))
		writeJSON(w, http.StatusOK, catalog.NewWork{IOItem: catalog.Sentinel})
	}))
	defer server.Close()

	c := NewMasterClient(server.URL, server.Client())
	work, err := c.NextWork(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, work.IOItem.IsSentinel())
}
