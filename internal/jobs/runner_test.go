package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	schedule string
	runs     atomic.Int32
	block    chan struct{}
}

func (j *countingJob) Name() string     { return "counting" }
func (j *countingJob) Schedule() string { return j.schedule }
func (j *countingJob) Run() {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
}

func TestTaskExecutor_RejectsBadSchedule(t *testing.T) {
	exec := NewTaskExecutor(&countingJob{schedule: "not a schedule"})
	assert.Error(t, exec.Start())
}

func TestTaskExecutor_RunExclusiveSkipsOverlap(t *testing.T) {
	job := &countingJob{schedule: "@every 1h", block: make(chan struct{})}
	exec := NewTaskExecutor(job)

	done := make(chan struct{})
	go func() {
		exec.runExclusive(job)
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Overlapping tick returns immediately without running.
	exec.runExclusive(job)
	assert.Equal(t, int32(1), job.runs.Load())

	close(job.block)
	<-done

	job.block = nil
	exec.runExclusive(job)
	assert.Equal(t, int32(2), job.runs.Load())
}
