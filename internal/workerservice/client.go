// Package workerservice is the worker side of master/worker dispatch: a
// Client the master uses to reach a worker (satisfying
// internal/master.Dispatcher), a MasterClient a worker uses to pull work
// from the master, and a Service exposing the worker's own HTTP routes.
package workerservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/master"
)

// Client is the master's handle on one worker, implementing
// master.Dispatcher over HTTP. Unlike pkg/agent/client.go's fixed request
// timeout, these requests are expected to block for as long as the
// worker takes to drain a job, so the caller's context carries any
// deadline.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a Client using httpClient for every request. Pass a
// client with no fixed Timeout; per-request deadlines should come from
// the context passed to DispatchJob/LoadOp.
func NewClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

var _ master.Dispatcher = (*Client)(nil)

type dispatchJobRequest struct {
	JobID      int                   `json:"job_id"`
	Params     catalog.JobParameters `json:"params"`
	LocalID    int                   `json:"local_id"`
	LocalTotal int                   `json:"local_total"`
}

// DispatchJob posts req to workerAddr's /job route and blocks until the
// worker replies, which it does only once it has drained the job.
func (c *Client) DispatchJob(ctx context.Context, workerAddr string, req master.JobAssignment) (catalog.Result, error) {
	body, err := json.Marshal(dispatchJobRequest{
		JobID: req.JobID, Params: req.Params, LocalID: req.LocalID, LocalTotal: req.LocalTotal,
	})
	if err != nil {
		return catalog.Result{}, fmt.Errorf("workerservice: marshal dispatch request: %w", err)
	}
	return c.postResult(ctx, workerAddr+"/job", body)
}

type loadOpRequest struct {
	Path        string   `json:"path"`
	OpName      string   `json:"op_name"`
	DeviceTypes []string `json:"device_types"`
}

// LoadOp posts to workerAddr's /ops/load route.
func (c *Client) LoadOp(ctx context.Context, workerAddr, path, opName string, deviceTypes []string) (catalog.Result, error) {
	body, err := json.Marshal(loadOpRequest{Path: path, OpName: opName, DeviceTypes: deviceTypes})
	if err != nil {
		return catalog.Result{}, fmt.Errorf("workerservice: marshal load-op request: %w", err)
	}
	return c.postResult(ctx, workerAddr+"/ops/load", body)
}

func (c *Client) postResult(ctx context.Context, url string, body []byte) (catalog.Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return catalog.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return catalog.Result{}, fmt.Errorf("workerservice: request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		respBody, _ := io.ReadAll(resp.Body)
		return catalog.Result{}, fmt.Errorf("workerservice: %s returned status %d: %s", url, resp.StatusCode, respBody)
	}

	var result catalog.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return catalog.Result{}, fmt.Errorf("workerservice: decode response from %s: %w", url, err)
	}
	return result, nil
}
