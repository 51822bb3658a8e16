package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/framecast/videoengine/internal/catalog"
)

var opDeviceTypes string

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Manage loaded ops",
}

var opsLoadCmd = &cobra.Command{
	Use:   "load <path> <op-name>",
	Short: "Load a shared-object op on the master and every registered worker",
	Args:  cobra.ExactArgs(2),
	RunE:  runOpsLoad,
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsLoadCmd)
	opsLoadCmd.Flags().StringVar(&opDeviceTypes, "device-types", "cpu", "comma-separated device types this op supports")
}

type loadOpRequest struct {
	Path        string   `json:"path"`
	OpName      string   `json:"op_name"`
	DeviceTypes []string `json:"device_types"`
}

func runOpsLoad(cmd *cobra.Command, args []string) error {
	req := loadOpRequest{
		Path:        args[0],
		OpName:      args[1],
		DeviceTypes: strings.Split(opDeviceTypes, ","),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := GetHTTPClient().Post(GetMasterURL()+"/ops/load", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("loading op: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	var result catalog.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("load failed: %s", result.Message)
	}
	fmt.Printf("op %q loaded from %s\n", req.OpName, req.Path)
	return nil
}
