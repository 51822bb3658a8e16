package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/framecast/videoengine/internal/catalog"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Submit and inspect jobs",
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit <file.json>",
	Short: "Submit a job descriptor to the master",
	Long:  `Submit reads a JSON-encoded job descriptor and blocks until the master reports the job as finished or failed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsSubmit,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed jobs",
	RunE:  runJobsList,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	var params catalog.JobParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	resp, err := GetHTTPClient().Post(GetMasterURL()+"/jobs", "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("submitting job: %w", err)
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

	if IsJSONOutput() {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Job", "Success", "Message")
	table.Append(params.Name, fmt.Sprintf("%v", result.Success), result.Message)
	table.Render()

	if !result.Success {
		return fmt.Errorf("job %q failed: %s", params.Name, result.Message)
	}
	return nil
}

type jobSummary struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func runJobsList(cmd *cobra.Command, args []string) error {
	resp, err := GetHTTPClient().Get(GetMasterURL() + "/jobs")
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("master returned status %d: %s", resp.StatusCode, body)
	}

	var jobs []jobSummary
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if IsJSONOutput() {
		out, _ := json.MarshalIndent(jobs, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Success", "Message")
	for _, j := range jobs {
		table.Append(fmt.Sprintf("%d", j.ID), j.Name, fmt.Sprintf("%v", j.Success), j.Message)
	}
	table.Render()
	return nil
}
