package resources

import "testing"

func TestProbe_ReturnsNonNegativeValues(t *testing.T) {
	snap := Probe()
	if snap.CPUThreads < 0 {
		t.Fatalf("CPUThreads = %d, want >= 0", snap.CPUThreads)
	}
	if snap.RAMTotalBytes < 0 {
		t.Fatalf("RAMTotalBytes = %d, want >= 0", snap.RAMTotalBytes)
	}
}
