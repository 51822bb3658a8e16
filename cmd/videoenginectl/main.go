// Command videoenginectl is the operator CLI for a videoengine master:
// submitting jobs, listing registered workers, and loading ops.
package main

import (
	"fmt"
	"os"

	"github.com/framecast/videoengine/cmd/videoenginectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
