package dag

import (
	"fmt"

	"github.com/framecast/videoengine/internal/catalog"
)

// Validate rejects a job if any task's shape is malformed, references a
// table the database doesn't have, or its op DAG violates topological
// order or the op registry. tables must already resolve every input
// table name referenced by any task's samples.
func Validate(reg *Registry, db *catalog.Database, tables map[string]*catalog.Table, params catalog.JobParameters) error {
	seenOutputNames := make(map[string]struct{})

	for ti, task := range params.Tasks {
		if task.OutputTableName == "" {
			return fmt.Errorf("dag: task %d: output table name is empty", ti)
		}
		if db.HasTable(task.OutputTableName) {
			return fmt.Errorf("dag: task %d: output table %q already exists", ti, task.OutputTableName)
		}
		if _, dup := seenOutputNames[task.OutputTableName]; dup {
			return fmt.Errorf("dag: task %d: output table %q duplicates another task in this job", ti, task.OutputTableName)
		}
		seenOutputNames[task.OutputTableName] = struct{}{}

		if len(task.Samples) == 0 {
			return fmt.Errorf("dag: task %d (%s): declares zero samples", ti, task.OutputTableName)
		}
		for si, sample := range task.Samples {
			if len(sample.Columns) == 0 {
				return fmt.Errorf("dag: task %d (%s): sample %d declares zero columns", ti, task.OutputTableName, si)
			}
			table, ok := tables[sample.TableName]
			if !ok {
				return fmt.Errorf("dag: task %d (%s): sample %d references non-existent input table %q", ti, task.OutputTableName, si, sample.TableName)
			}
			for _, col := range sample.Columns {
				if _, err := table.Column(col); err != nil {
					return fmt.Errorf("dag: task %d (%s): sample %d: input table %q does not have the requested column %q", ti, task.OutputTableName, si, sample.TableName, col)
				}
			}
		}

		if err := validateOps(ti, task); err != nil {
			return err
		}
		if err := validateRegistry(reg, ti, task); err != nil {
			return err
		}
	}

	return nil
}

func validateOps(taskIdx int, task catalog.Task) error {
	ops := task.Ops
	if len(ops) < 3 {
		return fmt.Errorf("dag: task %d (%s): operator DAG has fewer than three ops", taskIdx, task.OutputTableName)
	}
	if ops[0].Name != catalog.InputTableOp {
		return fmt.Errorf("dag: task %d (%s): operator DAG does not begin with %s", taskIdx, task.OutputTableName, catalog.InputTableOp)
	}
	if ops[len(ops)-1].Name != catalog.OutputTableOp {
		return fmt.Errorf("dag: task %d (%s): operator DAG does not end with %s", taskIdx, task.OutputTableName, catalog.OutputTableOp)
	}

	for i, op := range ops {
		for _, in := range op.Inputs {
			if in.OpIndex >= i {
				return fmt.Errorf("dag: task %d (%s): op %d (%s) input references op %d, which is not strictly earlier (topological order violation)", taskIdx, task.OutputTableName, i, op.Name, in.OpIndex)
			}
			if in.OpIndex < 0 || in.OpIndex >= len(ops) {
				return fmt.Errorf("dag: task %d (%s): op %d (%s) input references out-of-range op %d", taskIdx, task.OutputTableName, i, op.Name, in.OpIndex)
			}
			producer := ops[in.OpIndex]
			if !containsString(producer.Outputs, in.Column) {
				return fmt.Errorf("dag: task %d (%s): op %d (%s) does not have the requested column %q (requested by op %d, %s)", taskIdx, task.OutputTableName, in.OpIndex, producer.Name, in.Column, i, op.Name)
			}
		}
	}
	return nil
}

func validateRegistry(reg *Registry, taskIdx int, task catalog.Task) error {
	for i, op := range task.Ops {
		if op.Name == catalog.InputTableOp || op.Name == catalog.OutputTableOp {
			continue
		}
		spec, ok := reg.Lookup(op.Name)
		if !ok {
			return fmt.Errorf("dag: task %d (%s): op %d references unregistered op %q", taskIdx, task.OutputTableName, i, op.Name)
		}
		for _, dt := range op.DeviceTypes {
			if !spec.supports(dt) {
				return fmt.Errorf("dag: task %d (%s): op %d (%s) requests a kernel for unregistered device type %q", taskIdx, task.OutputTableName, i, op.Name, dt)
			}
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
