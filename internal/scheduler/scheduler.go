// Package scheduler issues tasks to worker supervisors with bounded
// concurrency.
package scheduler

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/gridley-labs/fanout/pkg/models"
)

// WorkerRunner runs one task to a terminal worker state. Satisfied by
// worker.Supervisor.
type WorkerRunner interface {
	Run(ctx context.Context, task *models.Task, siblings []*models.Task) *models.Worker
}

// Scheduler runs a fixed-size pool of workers over a task list. Workers are
// fully independent; the only coordination is slot accounting here.
type Scheduler struct {
	supervisor     WorkerRunner
	maxConcurrency int
	spawnStagger   time.Duration
	pollInterval   time.Duration

	// onWorker, when set, observes each terminal worker as it lands. The
	// session manager uses it to persist results incrementally.
	onWorker func(*models.Worker)
	logf     func(format string, args ...any)
}

// Options configures a Scheduler.
type Options struct {
	Supervisor     WorkerRunner
	MaxConcurrency int
	// SpawnStagger is a pause between consecutive launches so agents do not
	// hammer shared resources at startup.
	SpawnStagger time.Duration
	// PollInterval bounds how long the scheduler waits silently for a
	// completion before emitting a liveness line. Zero disables the heartbeat.
	PollInterval time.Duration
	OnWorker     func(*models.Worker)
	Logf         func(format string, args ...any)
}

// New creates a Scheduler. MaxConcurrency below 1 is raised to 1.
func New(opts Options) *Scheduler {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	s := &Scheduler{
		supervisor:     opts.Supervisor,
		maxConcurrency: opts.MaxConcurrency,
		spawnStagger:   opts.SpawnStagger,
		pollInterval:   opts.PollInterval,
		onWorker:       opts.OnWorker,
		logf:           opts.Logf,
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	return s
}

// Run blocks until every issued task reaches a terminal state, then returns
// one worker record per issued task. Issuance respects priority among tasks
// waiting for a free slot. On cancellation, in-flight workers terminate as
// Interrupted and not-yet-issued tasks stay Pending.
func (s *Scheduler) Run(ctx context.Context, tasks []*models.Task) []*models.Worker {
	queue := make([]*models.Task, len(tasks))
	copy(queue, tasks)
	// Stable sort: equal-priority tasks keep their decomposition order.
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Priority < queue[j].Priority
	})

	results := make(chan *models.Worker)
	byID := make(map[string]*models.Task, len(queue))
	for _, t := range queue {
		byID[t.ID] = t
	}

	var workers []*models.Worker
	inFlight := 0
	next := 0

	for next < len(queue) || inFlight > 0 {
		for next < len(queue) && inFlight < s.maxConcurrency && ctx.Err() == nil {
			task := queue[next]
			next++
			task.Status = models.TaskAssigned
			inFlight++
			s.logf("[scheduler] issuing task %s (priority %d, %d/%d slots)", task.ID, task.Priority, inFlight, s.maxConcurrency)
			go func() {
				results <- s.supervisor.Run(ctx, task, tasks)
			}()

			if s.spawnStagger > 0 && next < len(queue) && inFlight < s.maxConcurrency {
				select {
				case <-ctx.Done():
				case <-time.After(s.spawnStagger):
				}
			}
		}

		if inFlight == 0 {
			// Cancelled with nothing left running; remaining tasks stay
			// Pending so a later run can pick them up.
			break
		}

		w := s.awaitResult(results, inFlight)
		inFlight--
		if task, ok := byID[w.TaskID]; ok {
			task.Status = models.TaskStatusFor(w.Status)
		}
		workers = append(workers, w)
		s.logf("[scheduler] task %s finished: %s", w.TaskID, w.Status)
		if s.onWorker != nil {
			s.onWorker(w)
		}
	}

	return workers
}

// awaitResult blocks for the next terminal worker, logging a heartbeat every
// pollInterval so long agent runs are visibly alive.
func (s *Scheduler) awaitResult(results <-chan *models.Worker, inFlight int) *models.Worker {
	if s.pollInterval <= 0 {
		return <-results
	}
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case w := <-results:
			return w
		case <-ticker.C:
			s.logf("[scheduler] %d workers in flight", inFlight)
		}
	}
}
