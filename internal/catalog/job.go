package catalog

// OpInput names a single input to an Op: the index of the op in the DAG
// that produces it (must be < the consuming op's own index) and the
// column name declared in that op's outputs.
type OpInput struct {
	OpIndex int    `json:"op_index"`
	Column  string `json:"column"`
}

// OpSpec describes one node of a task's operator DAG, as resolved against
// the process-wide op registry. The two synthetic ops InputTable and
// OutputTable bookend every DAG: InputTable has no inputs and its outputs
// are the sample's requested columns; OutputTable has no outputs of its
// own.
type OpSpec struct {
	Name        string    `json:"name"`
	Inputs      []OpInput `json:"inputs,omitempty"`
	Outputs     []string  `json:"outputs,omitempty"`
	DeviceTypes []string  `json:"device_types,omitempty"`
	Stateful    bool      `json:"stateful,omitempty"`
	WarmupSize  int64     `json:"warmup_size,omitempty"`
}

const (
	// InputTableOp is the synthetic op every DAG must begin with.
	InputTableOp = "InputTable"
	// OutputTableOp is the synthetic op every DAG must end with.
	OutputTableOp = "OutputTable"
)

// Sample references one input table, a sampler function that enumerates
// the rows this task reads from it, and the columns to read.
type Sample struct {
	TableName   string           `json:"table_name"`
	SamplerName string           `json:"sampler_name"`
	SamplerArgs map[string]int64 `json:"sampler_args,omitempty"`
	Columns     []string         `json:"columns"`
}

// Task describes one output table produced by fanning one or more Samples
// through an operator DAG.
type Task struct {
	OutputTableName string   `json:"output_table_name"`
	Samples         []Sample `json:"samples"`
	Ops             []OpSpec `json:"ops"`
}

// JobParameters is the client-supplied description of a job, as given to
// NewJob.
type JobParameters struct {
	Name         string `json:"name"`
	IOItemSize   int64  `json:"io_item_size"`
	WorkItemSize int64  `json:"work_item_size"`
	NumNodes     int    `json:"num_nodes,omitempty"`
	Tasks        []Task `json:"tasks"`
}

// JobDescriptor is the persisted, id-bearing form of a job.
type JobDescriptor struct {
	ID int `json:"id"`
	JobParameters
}

// IOItem addresses one work unit: a task-local sequence number plus the
// output table and row span it is responsible for.
type IOItem struct {
	ItemID   int64 `json:"item_id"`
	TableID  int   `json:"table_id"`
	StartRow int64 `json:"start_row"`
	EndRow   int64 `json:"end_row"`
}

// Sentinel is the IOItem value NextWork returns once a worker has drained
// all work.
var Sentinel = IOItem{ItemID: -1}

// IsSentinel reports whether item is the drain sentinel.
func (item IOItem) IsSentinel() bool { return item.ItemID == -1 }

// SampleWork is one sample's contribution to a NewWork unit: the input
// table it reads, the columns requested, and the warmup/live row slices
// covered by this unit.
type SampleWork struct {
	TableID    int     `json:"table_id"`
	ColumnIDs  []int   `json:"column_ids"`
	WarmupRows []int64 `json:"warmup_rows,omitempty"`
	Rows       []int64 `json:"rows"`
}

// LoadWorkEntry is the per-unit payload handed to the load worker.
type LoadWorkEntry struct {
	Samples []SampleWork `json:"samples"`
}

// NewWork is one unit of master-to-worker dispatch.
type NewWork struct {
	IOItem IOItem        `json:"io_item"`
	Entry  LoadWorkEntry `json:"entry"`
}

// DeviceHandle is the placement of a produced column's buffers.
type DeviceHandle int

const (
	CPU DeviceHandle = iota
	GPU
)

// EvalWorkEntry is what the load worker produces and the evaluate stage
// consumes: one serialized row per requested frame/row, per column, in
// left-to-right sample/column declaration order.
type EvalWorkEntry struct {
	Columns       [][][]byte     `json:"columns"`
	ColumnTypes   []ColumnType   `json:"column_types"`
	ColumnHandles []DeviceHandle `json:"column_handles"`
	// WarmupRows is the prefix length of only the first sample's row
	// slice that is warmup context rather than live output.
	WarmupRows  int64 `json:"warmup_rows"`
	IOItemIndex int64 `json:"io_item_index"`
}
