package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Inspect registered workers",
}

var nodesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers registered with the master",
	RunE:  runNodesList,
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.AddCommand(nodesListCmd)
}

type workerInfo struct {
	NodeID        int    `json:"node_id"`
	Address       string `json:"address"`
	CPUThreads    int    `json:"cpu_threads,omitempty"`
	RAMTotalBytes int64  `json:"ram_total_bytes,omitempty"`
}

func runNodesList(cmd *cobra.Command, args []string) error {
	resp, err := GetHTTPClient().Get(GetMasterURL() + "/workers")
	if err != nil {
		return fmt.Errorf("listing workers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("master returned status %d: %s", resp.StatusCode, body)
	}

	var workers []workerInfo
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if IsJSONOutput() {
		out, _ := json.MarshalIndent(workers, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Node ID", "Address", "CPU Threads", "RAM Total")
	for _, w := range workers {
		table.Append(fmt.Sprintf("%d", w.NodeID), w.Address, fmt.Sprintf("%d", w.CPUThreads), fmt.Sprintf("%d", w.RAMTotalBytes))
	}
	table.Render()
	return nil
}
