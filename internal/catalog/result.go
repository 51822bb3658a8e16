package catalog

import "fmt"

// Result is the RPC-level result envelope: NewJob, LoadOp and worker-side
// NewJob/LoadOp all reply with one of these.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK is the canonical success result.
func OK() Result { return Result{Success: true} }

// Errorf builds a failed Result.
func Errorf(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}
