package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIntoVideoIntervals_AdjacentSegmentsMergeIntoOneRun(t *testing.T) {
	// keyframe_positions=[0,30,60,90], frame_count=100, requested frames
	// [0,10,40,80]. Every requested frame's keyframe segment is adjacent
	// to (or the same as) the previous one's, so the minimal covering
	// decomposition is a single run.
	positions := []int64{0, 30, 60, 90}
	got, err := SliceIntoVideoIntervals(positions, 100, []int64{0, 10, 40, 80})
	require.NoError(t, err)

	require.Len(t, got.KeyframeIndexIntervals, 1)
	assert.Equal(t, [2]int{0, 3}, got.KeyframeIndexIntervals[0])
	assert.Equal(t, []int64{0, 10, 40, 80}, got.ValidFrames[0])
}

func TestSliceIntoVideoIntervals_SkippedKeyframeSplitsRun(t *testing.T) {
	// Frame 0 is in segment [0,30); frame 80 is in segment [60,90) - segment
	// [30,60) is entirely skipped, so two runs are emitted.
	positions := []int64{0, 30, 60, 90}
	got, err := SliceIntoVideoIntervals(positions, 100, []int64{0, 80})
	require.NoError(t, err)

	require.Len(t, got.KeyframeIndexIntervals, 2)
	assert.Equal(t, [2]int{0, 1}, got.KeyframeIndexIntervals[0])
	assert.Equal(t, []int64{0}, got.ValidFrames[0])
	assert.Equal(t, [2]int{2, 3}, got.KeyframeIndexIntervals[1])
	assert.Equal(t, []int64{80}, got.ValidFrames[1])
}

func TestSliceIntoVideoIntervals_SingleFrame(t *testing.T) {
	positions := []int64{0, 30, 60, 90}
	got, err := SliceIntoVideoIntervals(positions, 100, []int64{45})
	require.NoError(t, err)

	require.Len(t, got.KeyframeIndexIntervals, 1)
	assert.Equal(t, [2]int{1, 2}, got.KeyframeIndexIntervals[0])
	assert.Equal(t, []int64{45}, got.ValidFrames[0])
}

func TestSliceIntoVideoIntervals_CoverageAndMonotonicity(t *testing.T) {
	positions := []int64{0, 10, 20, 30, 40, 50}
	rows := []int64{0, 5, 22, 23, 49}
	got, err := SliceIntoVideoIntervals(positions, 55, rows)
	require.NoError(t, err)

	// Coverage: union of ValidFrames == rows, in order, no duplicates.
	var all []int64
	for _, fr := range got.ValidFrames {
		all = append(all, fr...)
	}
	assert.Equal(t, rows, all)

	extended := append(append([]int64{}, positions...), 55)
	prevEnd := -1
	for _, iv := range got.KeyframeIndexIntervals {
		start, end := iv[0], iv[1]
		assert.Less(t, extended[start], extended[end])
		assert.Greater(t, start, prevEnd-1)
		prevEnd = end
	}
}

func TestSliceIntoVideoIntervals_EmptyRowsRejected(t *testing.T) {
	_, err := SliceIntoVideoIntervals([]int64{0, 10}, 20, nil)
	assert.Error(t, err)
}

func TestSliceIntoVideoIntervals_OutOfRangeRejected(t *testing.T) {
	_, err := SliceIntoVideoIntervals([]int64{0, 10}, 20, []int64{25})
	assert.Error(t, err)
}
