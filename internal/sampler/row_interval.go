// Package sampler implements the two nested interval decompositions that
// turn a requested row list into the byte ranges the load worker must
// read: row-intervals (which items, and which offsets within each item)
// and video-intervals (which keyframe runs contain the requested frames).
package sampler

import "fmt"

// RowIntervals is the result of SliceIntoRowIntervals: three parallel
// slices, one entry per contiguous run of rows sharing the same item.
type RowIntervals struct {
	ItemIDs []int
	// ItemIntervals[k] is the half-open [start,end) row range within
	// item ItemIDs[k] that must be read from disk to cover the run -
	// i.e. the contiguous read range, which may be wider than the rows
	// actually requested.
	ItemIntervals [][2]int64
	// ValidOffsets[k] are the exact per-item row offsets requested,
	// a subset of [ItemIntervals[k][0], ItemIntervals[k][1]).
	ValidOffsets [][]int64
}

// SliceIntoRowIntervals decomposes rows (sorted ascending, non-empty, every
// row strictly less than endRows' last entry) into the sequence of items
// they touch.
//
// itemOffset(r) = r - endRows[i-1] (or r for i==0), where i is the index
// of the item containing r. endRows is cumulative, so the per-item
// offset must subtract the previous item's cumulative row count, not
// endRows itself.
func SliceIntoRowIntervals(endRows []int64, rows []int64) (RowIntervals, error) {
	if len(rows) == 0 {
		return RowIntervals{}, fmt.Errorf("sampler: rows must be non-empty")
	}
	if len(endRows) == 0 {
		return RowIntervals{}, fmt.Errorf("sampler: table has no items")
	}
	total := endRows[len(endRows)-1]

	var out RowIntervals
	itemIdx := 0
	curItem := -1
	var curOffsets []int64

	flush := func() {
		if curItem == -1 {
			return
		}
		out.ItemIDs = append(out.ItemIDs, curItem)
		out.ItemIntervals = append(out.ItemIntervals, [2]int64{curOffsets[0], curOffsets[len(curOffsets)-1] + 1})
		out.ValidOffsets = append(out.ValidOffsets, curOffsets)
	}

	var prev int64 = -1
	for _, r := range rows {
		if r < prev {
			return RowIntervals{}, fmt.Errorf("sampler: rows must be ascending, got %d after %d", r, prev)
		}
		prev = r
		if r < 0 || r >= total {
			return RowIntervals{}, fmt.Errorf("sampler: row %d out of range [0,%d)", r, total)
		}
		for itemIdx < len(endRows)-1 && r >= endRows[itemIdx] {
			itemIdx++
		}
		var offset int64
		if itemIdx == 0 {
			offset = r
		} else {
			offset = r - endRows[itemIdx-1]
		}
		if itemIdx != curItem {
			flush()
			curItem = itemIdx
			curOffsets = nil
		}
		curOffsets = append(curOffsets, offset)
	}
	flush()
	return out, nil
}
