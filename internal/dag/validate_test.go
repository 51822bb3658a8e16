package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecast/videoengine/internal/catalog"
)

func baseRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("FooOp", KernelSpec{DeviceTypes: []string{"cpu"}})
	return reg
}

func validTask(name string) catalog.Task {
	return catalog.Task{
		OutputTableName: name,
		Samples: []catalog.Sample{
			{TableName: "input", SamplerName: "all", Columns: []string{"image"}},
		},
		Ops: []catalog.OpSpec{
			{Name: catalog.InputTableOp, Outputs: []string{"image"}},
			{Name: "FooOp", Inputs: []catalog.OpInput{{OpIndex: 0, Column: "image"}}, Outputs: []string{"out"}, DeviceTypes: []string{"cpu"}},
			{Name: catalog.OutputTableOp, Inputs: []catalog.OpInput{{OpIndex: 1, Column: "out"}}},
		},
	}
}

func inputTable() *catalog.Table {
	return &catalog.Table{
		ID:      0,
		Name:    "input",
		Columns: []catalog.Column{{ID: 0, Name: "image", Type: catalog.Other}},
		EndRows: []int64{10},
	}
}

func TestValidate_Accepts(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	params := catalog.JobParameters{Tasks: []catalog.Task{validTask("out1")}}

	err := Validate(baseRegistry(), db, tables, params)
	assert.NoError(t, err)
}

func TestValidate_RejectsEmptyOutputName(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("")
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output table name is empty")
}

func TestValidate_RejectsDuplicateExistingTable(t *testing.T) {
	db := catalog.NewDatabase()
	db.AllocateTableID("out1")
	tables := map[string]*catalog.Table{"input": inputTable()}
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{validTask("out1")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestValidate_RejectsDuplicateWithinJob(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	params := catalog.JobParameters{Tasks: []catalog.Task{validTask("out1"), validTask("out1")}}
	err := Validate(baseRegistry(), db, tables, params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates another task")
}

func TestValidate_RejectsZeroSamples(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Samples = nil
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero samples")
}

func TestValidate_RejectsMissingColumn(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Samples[0].Columns = []string{"nope"}
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not have the requested column")
}

func TestValidate_RejectsMissingInputTable(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{}
	task := validTask("out1")
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent input table")
}

func TestValidate_RejectsShortDAG(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops = task.Ops[:2]
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fewer than three ops")
}

func TestValidate_RejectsWrongBookends(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops[0].Name = "FooOp"
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not begin with")
}

func TestValidate_RejectsUnregisteredOp(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops[1].Name = "BarOp"
	err := Validate(NewRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered op")
}

func TestValidate_RejectsUnsupportedDeviceType(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops[1].DeviceTypes = []string{"gpu"}
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered device type")
}

func TestValidate_RejectsForwardReference(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops[1].Inputs = []catalog.OpInput{{OpIndex: 2, Column: "whatever"}}
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topological order violation")
}

// TestValidate_RejectsUndeclaredOutputColumn reproduces the literal
// scenario-4 DAG: FooOp depends on column "nope" of InputTable, where
// InputTable exposes only "image".
func TestValidate_RejectsUndeclaredOutputColumn(t *testing.T) {
	db := catalog.NewDatabase()
	tables := map[string]*catalog.Table{"input": inputTable()}
	task := validTask("out1")
	task.Ops[1].Inputs = []catalog.OpInput{{OpIndex: 0, Column: "nope"}}
	err := Validate(baseRegistry(), db, tables, catalog.JobParameters{Tasks: []catalog.Task{task}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not have the requested column")
}
