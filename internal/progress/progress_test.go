package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTracker_AdvanceAndSnapshot(t *testing.T) {
	tr := NewTracker(10)
	tr.Advance(4)
	used, total := tr.Snapshot()
	require.Equal(t, int64(4), used)
	require.Equal(t, int64(10), total)
	require.False(t, tr.Done())
}

func TestTracker_DoneFreezesElapsed(t *testing.T) {
	tr := NewTracker(3)
	tr.Advance(3)
	require.True(t, tr.Done())

	elapsed := tr.Elapsed()
	time.Sleep(time.Millisecond)
	require.Equal(t, elapsed, tr.Elapsed())
}

func TestTracker_ZeroTotalNeverDone(t *testing.T) {
	tr := NewTracker(0)
	require.False(t, tr.Done())
}
