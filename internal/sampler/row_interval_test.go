package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIntoRowIntervals_StraddlesItemBoundary(t *testing.T) {
	// A requested-row run that straddles a two-item table boundary.
	endRows := []int64{3, 7}
	rows := []int64{1, 2, 5}

	got, err := SliceIntoRowIntervals(endRows, rows)
	require.NoError(t, err)

	require.Equal(t, []int{0, 1}, got.ItemIDs)
	assert.Equal(t, [2]int64{1, 3}, got.ItemIntervals[0])
	assert.Equal(t, []int64{1, 2}, got.ValidOffsets[0])
	assert.Equal(t, [2]int64{2, 3}, got.ItemIntervals[1])
	assert.Equal(t, []int64{2}, got.ValidOffsets[1])
}

func TestSliceIntoRowIntervals_StridedVideo(t *testing.T) {
	endRows := []int64{100}
	rows := []int64{0, 10, 40, 80}

	got, err := SliceIntoRowIntervals(endRows, rows)
	require.NoError(t, err)

	require.Equal(t, []int{0}, got.ItemIDs)
	assert.Equal(t, [2]int64{0, 81}, got.ItemIntervals[0])
	assert.Equal(t, []int64{0, 10, 40, 80}, got.ValidOffsets[0])
}

func TestSliceIntoRowIntervals_OffsetWithinItemCorrectedFormula(t *testing.T) {
	// Three non-empty items; row 12 is item 2's 3rd row (offset 2).
	endRows := []int64{5, 10, 15}
	rows := []int64{12}

	got, err := SliceIntoRowIntervals(endRows, rows)
	require.NoError(t, err)
	require.Equal(t, []int{2}, got.ItemIDs)
	assert.Equal(t, []int64{2}, got.ValidOffsets[0])
}

func TestSliceIntoRowIntervals_EmptyRowsRejected(t *testing.T) {
	_, err := SliceIntoRowIntervals([]int64{10}, nil)
	assert.Error(t, err)
}

func TestSliceIntoRowIntervals_OutOfRangeRejected(t *testing.T) {
	_, err := SliceIntoRowIntervals([]int64{10}, []int64{10})
	assert.Error(t, err)
}

func TestSliceIntoRowIntervals_Completeness(t *testing.T) {
	// Property: concatenating ValidOffsets, re-keyed to global row indices,
	// reproduces rows exactly.
	endRows := []int64{4, 9, 9, 20}
	rows := []int64{0, 1, 3, 4, 8, 15, 16, 19}

	got, err := SliceIntoRowIntervals(endRows, rows)
	require.NoError(t, err)

	var reconstructed []int64
	for k, itemID := range got.ItemIDs {
		base := int64(0)
		if itemID > 0 {
			base = endRows[itemID-1]
		}
		for _, off := range got.ValidOffsets[k] {
			reconstructed = append(reconstructed, base+off)
		}
	}
	assert.Equal(t, rows, reconstructed)

	// Contiguity: item_start <= min(valid) <= max(valid) < item_end.
	for k := range got.ItemIDs {
		start, end := got.ItemIntervals[k][0], got.ItemIntervals[k][1]
		offs := got.ValidOffsets[k]
		mn, mx := offs[0], offs[0]
		for _, o := range offs {
			if o < mn {
				mn = o
			}
			if o > mx {
				mx = o
			}
		}
		assert.LessOrEqual(t, start, mn)
		assert.LessOrEqual(t, mn, mx)
		assert.Less(t, mx, end)
	}
}
