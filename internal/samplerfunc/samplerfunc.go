// Package samplerfunc holds the small registry of row-enumeration
// functions a client Sample can name by its sampler_name field.
package samplerfunc

import "fmt"

// Func enumerates the (ascending, deduplicated) row indices a sample reads
// out of a table with the given row count.
type Func func(numRows int64, args map[string]int64) ([]int64, error)

var registry = map[string]Func{
	"all":     all,
	"range":   rangeFunc,
	"strided": strided,
}

// Enumerate resolves name against the registry and runs it.
func Enumerate(name string, numRows int64, args map[string]int64) ([]int64, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("samplerfunc: unknown sampler function %q", name)
	}
	return fn(numRows, args)
}

// all enumerates every row of the table.
func all(numRows int64, _ map[string]int64) ([]int64, error) {
	rows := make([]int64, numRows)
	for i := range rows {
		rows[i] = int64(i)
	}
	return rows, nil
}

// rangeFunc enumerates [start, end) with the table's row count as the
// default end.
func rangeFunc(numRows int64, args map[string]int64) ([]int64, error) {
	start := args["start"]
	end, hasEnd := args["end"]
	if !hasEnd {
		end = numRows
	}
	if start < 0 || end > numRows || start > end {
		return nil, fmt.Errorf("samplerfunc: range [%d,%d) invalid for table with %d rows", start, end, numRows)
	}
	rows := make([]int64, 0, end-start)
	for r := start; r < end; r++ {
		rows = append(rows, r)
	}
	return rows, nil
}

// strided enumerates [start, end) stepping by stride, defaulting start=0,
// end=numRows, stride=1.
func strided(numRows int64, args map[string]int64) ([]int64, error) {
	start := args["start"]
	end, hasEnd := args["end"]
	if !hasEnd {
		end = numRows
	}
	stride := args["stride"]
	if stride <= 0 {
		stride = 1
	}
	if start < 0 || end > numRows || start > end {
		return nil, fmt.Errorf("samplerfunc: strided range [%d,%d)/%d invalid for table with %d rows", start, end, stride, numRows)
	}
	var rows []int64
	for r := start; r < end; r += stride {
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("samplerfunc: strided range [%d,%d)/%d produced no rows", start, end, stride)
	}
	return rows, nil
}
