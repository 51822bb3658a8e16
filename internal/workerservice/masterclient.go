package workerservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/framecast/videoengine/internal/catalog"
)

// MasterClient is a worker's handle on the master, grounded on the same
// register/poll shape as a load-balancing agent client: one long-lived
// HTTP client, one base URL, pull in a loop until the sentinel.
type MasterClient struct {
	masterURL  string
	httpClient *http.Client
}

// NewMasterClient returns a client against masterURL.
func NewMasterClient(masterURL string, httpClient *http.Client) *MasterClient {
	return &MasterClient{masterURL: masterURL, httpClient: httpClient}
}

// NextWork pulls the next work unit for nodeID, or the sentinel once the
// job is drained.
func (c *MasterClient) NextWork(ctx context.Context, nodeID int) (catalog.NewWork, error) {
	url := fmt.Sprintf("%s/work/next?node_id=%d", c.masterURL, nodeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return catalog.NewWork{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return catalog.NewWork{}, fmt.Errorf("workerservice: NextWork request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return catalog.NewWork{}, fmt.Errorf("workerservice: NextWork returned status %d: %s", resp.StatusCode, body)
	}

	var work catalog.NewWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return catalog.NewWork{}, fmt.Errorf("workerservice: decode NextWork response: %w", err)
	}
	return work, nil
}
