// Package jobs runs scheduled background work.
package jobs

import (
	"fmt"
	"sync"

	"mindlog/internal/middleware"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
)

type Job interface {
	Name() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs each CronJob on its schedule, skipping a tick while the
// previous run of the same job is still going.
type TaskExecutor struct {
	cron     *cron.Cron
	cronJobs []CronJob
	running  mapset.Set[string]
	mu       sync.Mutex
}

func NewTaskExecutor(cronJobs ...CronJob) *TaskExecutor {
	return &TaskExecutor{
		cron:     cron.New(),
		cronJobs: cronJobs,
		running:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Start registers every job and starts the scheduler in its own goroutine.
func (t *TaskExecutor) Start() error {
	for _, job := range t.cronJobs {
		job := job
		if err := t.cron.AddFunc(job.Schedule(), func() { t.runExclusive(job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name(), job.Schedule(), err)
		}
	}
	t.cron.Start()
	return nil
}

func (t *TaskExecutor) runExclusive(job CronJob) {
	t.mu.Lock()
	if t.running.Contains(job.Name()) {
		t.mu.Unlock()
		middleware.Logger.Warn("job still running, skipping tick", "job", job.Name())
		return
	}
	t.running.Add(job.Name())
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running.Remove(job.Name())
		t.mu.Unlock()
	}()

	job.Run()
}

func (t *TaskExecutor) Stop() {
	middleware.Logger.Info("stopping scheduled jobs")
	t.cron.Stop()
}
