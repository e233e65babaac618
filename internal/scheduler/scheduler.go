// Package scheduler triggers pipeline batches on cron schedules for
// deployments without an external scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Schedule string
	// Timeout bounds one run. Zero means no limit beyond Stop.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type entry struct {
	job Job
	id  cron.EntryID
}

// Scheduler runs jobs with a standard 5-field cron parser. A run that is
// still in progress when its next tick arrives is skipped, and a panicking
// run is logged and recovered.
type Scheduler struct {
	cron     *cron.Cron
	parser   cron.Parser
	wrappers []cron.JobWrapper
	log      infralogger.Logger

	mu      sync.Mutex
	entries map[string]*entry

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(log infralogger.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	wrappers := []cron.JobWrapper{cron.Recover(cl), cron.SkipIfStillRunning(cl)}
	return &Scheduler{
		cron:     cron.New(cron.WithParser(parser), cron.WithLogger(cl), cron.WithChain(wrappers...)),
		parser:   parser,
		wrappers: wrappers,
		log:      log,
		entries:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}
	schedule, err := s.parser.Parse(job.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: job %s: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("scheduler: job %s already registered", job.Name)
	}

	e := &entry{job: job}
	e.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(e) }))
	s.entries[job.Name] = e

	s.log.Info("Scheduled job",
		infralogger.String("job", job.Name),
		infralogger.String("schedule", job.Schedule),
		infralogger.Time("next_run", schedule.Next(time.Now())),
	)
	return nil
}

// Start begins dispatching.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts dispatching, cancels running jobs and waits for them or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports a job's next scheduled run.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

func (s *Scheduler) run(e *entry) {
	ctx := s.ctx
	if e.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := e.job.Run(ctx); err != nil {
		s.log.Error("Scheduled job failed",
			infralogger.String("job", e.job.Name),
			infralogger.Duration("duration", time.Since(start)),
			infralogger.Error(err),
		)
		return
	}
	s.log.Info("Scheduled job completed",
		infralogger.String("job", e.job.Name),
		infralogger.Duration("duration", time.Since(start)),
	)
}

// cronLogger routes cron's own logging through the service logger. Routine
// dispatch messages go to Debug.
type cronLogger struct {
	log infralogger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if msg == "skip" {
		l.log.Warn("Skipping job run, previous run still active", kvFields(keysAndValues)...)
		return
	}
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := append(kvFields(keysAndValues), infralogger.Error(err))
	if msg == "panic" {
		l.log.Error("Scheduled job panicked", fields...)
		return
	}
	l.log.Error("cron: "+msg, fields...)
}

func kvFields(keysAndValues []any) []infralogger.Field {
	fields := make([]infralogger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, infralogger.Any(key, keysAndValues[i+1]))
	}
	return fields
}
