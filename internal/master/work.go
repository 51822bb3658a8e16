package master

import (
	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/tasksampler"
)

// NextWork hands out the next unit of work, serialized under Master's
// single mutex. nodeID is accepted but unused beyond liveness - work is
// handed out in task-sampler order, not per-worker.
func (m *Master) NextWork(nodeID int) catalog.NewWork {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextWorkLocked()
}

func (m *Master) nextWorkLocked() catalog.NewWork {
	job := m.job
	if job == nil {
		return catalog.NewWork{IOItem: catalog.Sentinel}
	}

	for job.samplesLeft == 0 {
		if job.lastFailed || job.nextTask+1 >= len(job.descriptor.Tasks) {
			m.recordNextWork(false, job)
			return catalog.NewWork{IOItem: catalog.Sentinel}
		}

		job.nextTask++
		task := job.descriptor.Tasks[job.nextTask]
		outputTableID := job.tables[task.OutputTableName].ID

		sampler, err := tasksampler.New(task, outputTableID, job.descriptor.IOItemSize, job.tables)
		if err != nil {
			m.log.Errorf("task %q sampler construction failed: %v", task.OutputTableName, err)
			job.lastFailed = true
			job.nextTask = len(job.descriptor.Tasks)
			m.recordNextWork(false, job)
			return catalog.NewWork{IOItem: catalog.Sentinel}
		}
		job.sampler = sampler
		job.samplesLeft = sampler.TotalSamples()
	}

	var out catalog.NewWork
	ok, err := job.sampler.NextWork(&out)
	if err != nil {
		m.log.Errorf("sampler.NextWork failed: %v", err)
		job.lastFailed = true
		job.nextTask = len(job.descriptor.Tasks)
		job.samplesLeft = 0
		m.recordNextWork(false, job)
		return catalog.NewWork{IOItem: catalog.Sentinel}
	}
	if !ok {
		// The sampler believes itself exhausted even though samples_left
		// hadn't reached zero in lockstep; fall through to the next task.
		job.samplesLeft = 0
		return m.nextWorkLocked()
	}

	job.samplesLeft--
	job.totalSamplesUsed++
	job.tracker.Advance(1)
	m.recordNextWork(true, job)
	return out
}

func (m *Master) recordNextWork(gotUnit bool, job *activeJob) {
	if m.metrics == nil {
		return
	}
	if gotUnit {
		m.metrics.NextWorkTotal.WithLabelValues("unit").Inc()
	} else {
		m.metrics.NextWorkTotal.WithLabelValues("sentinel").Inc()
	}
	used, total := job.tracker.Snapshot()
	m.metrics.SamplesUsed.Set(float64(used))
	m.metrics.SamplesRemaining.Set(float64(total - used))
}
