package sampler

import "fmt"

// VideoIntervals is the result of SliceIntoVideoIntervals.
type VideoIntervals struct {
	// KeyframeIndexIntervals[k] = (startKFIndex, endKFIndex) is a run
	// whose byte range [keyframeByteOffsets[start], keyframeByteOffsets[end])
	// is independently decodable and covers every frame in ValidFrames[k].
	KeyframeIndexIntervals [][2]int
	ValidFrames            [][]int64
}

// SliceIntoVideoIntervals computes the minimum set of contiguous keyframe
// runs covering every frame in rows (ascending, within
// [keyframePositions[0], frameCount)).
//
// A run is extended in place whenever the next requested frame's keyframe
// boundary is the very next one beyond the run's current trailing
// terminator (no keyframe entirely skipped). It is only when a requested
// frame's boundary jumps past an untouched keyframe that the run is closed
// and a new one opened - this is what keeps the byte ranges minimal: two
// far-apart requested frames whose keyframe segments are adjacent still
// share one run, since an intervening keyframe segment would need to be
// read anyway to stay on a keyframe boundary.
func SliceIntoVideoIntervals(keyframePositions []int64, frameCount int64, rows []int64) (VideoIntervals, error) {
	if len(rows) == 0 {
		return VideoIntervals{}, fmt.Errorf("sampler: rows must be non-empty")
	}
	if len(keyframePositions) == 0 {
		return VideoIntervals{}, fmt.Errorf("sampler: keyframe_positions must be non-empty")
	}
	// Extend with the frame-count sentinel so every valid frame falls in
	// some [positions[i], positions[i+1]).
	positions := make([]int64, len(keyframePositions)+1)
	copy(positions, keyframePositions)
	positions[len(positions)-1] = frameCount
	if len(positions) < 2 {
		return VideoIntervals{}, fmt.Errorf("sampler: keyframe_positions too short")
	}

	kfAtOrBefore := func(f int64) int {
		i := 0
		for i+1 < len(positions) && positions[i+1] <= f {
			i++
		}
		return i
	}

	var out VideoIntervals
	var prevRow int64 = -1

	startKF := kfAtOrBefore(rows[0])
	endKF := startKF
	advanceEnd := func(f int64) {
		for endKF < len(positions)-1 && positions[endKF] <= f {
			endKF++
		}
	}
	var frames []int64

	for _, r := range rows {
		if r < prevRow {
			return VideoIntervals{}, fmt.Errorf("sampler: rows must be ascending, got %d after %d", r, prevRow)
		}
		if r < positions[0] || r >= frameCount {
			return VideoIntervals{}, fmt.Errorf("sampler: frame %d out of range [%d,%d)", r, positions[0], frameCount)
		}
		prevRow = r

		if len(frames) == 0 {
			advanceEnd(r)
			frames = append(frames, r)
			continue
		}

		prevEnd := endKF
		advanceEnd(r)
		if endKF-prevEnd > 1 {
			// Close the current run; open a new one at r's keyframe.
			out.KeyframeIndexIntervals = append(out.KeyframeIndexIntervals, [2]int{startKF, prevEnd})
			out.ValidFrames = append(out.ValidFrames, frames)

			startKF = kfAtOrBefore(r)
			endKF = startKF
			advanceEnd(r)
			frames = []int64{r}
		} else {
			frames = append(frames, r)
		}
	}
	out.KeyframeIndexIntervals = append(out.KeyframeIndexIntervals, [2]int{startKF, endKF})
	out.ValidFrames = append(out.ValidFrames, frames)

	return out, nil
}
