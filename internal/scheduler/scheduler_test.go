//nolint:testpackage // exercises the unexported run wrapper
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
)

func TestScheduler_AddValidates(t *testing.T) {
	t.Parallel()

	s := New(infralogger.NewNop())
	noop := func(context.Context) error { return nil }

	testCases := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "valid", job: Job{Name: "fetch", Schedule: "*/15 * * * *", Run: noop}},
		{name: "duplicate", job: Job{Name: "fetch", Schedule: "0 * * * *", Run: noop}, wantErr: true},
		{name: "six fields rejected", job: Job{Name: "secs", Schedule: "0 */5 * * * *", Run: noop}, wantErr: true},
		{name: "garbage", job: Job{Name: "bad", Schedule: "every tuesday", Run: noop}, wantErr: true},
		{name: "no run func", job: Job{Name: "empty", Schedule: "0 * * * *"}, wantErr: true},
	}

	for _, tc := range testCases {
		err := s.Add(tc.job)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Add() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}

	s.Start()
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	next, ok := s.Next("fetch")
	if !ok || next.IsZero() {
		t.Fatalf("Next() = %v, %v; want a scheduled time", next, ok)
	}
	if until := time.Until(next); until > 15*time.Minute {
		t.Errorf("next run in %v, want within 15m", until)
	}
}

type recordLogger struct {
	infralogger.Logger

	mu     sync.Mutex
	warns  []string
	errors []string
}

func newRecordLogger() *recordLogger {
	return &recordLogger{Logger: infralogger.NewNop()}
}

func (l *recordLogger) Warn(msg string, _ ...infralogger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordLogger) Error(msg string, _ ...infralogger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

// dispatch wraps e the way the cron runner does.
func dispatch(s *Scheduler, e *entry) cron.Job {
	return cron.NewChain(s.wrappers...).Then(cron.FuncJob(func() { s.run(e) }))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	log := newRecordLogger()
	s := New(log)
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	job := dispatch(s, &entry{job: Job{Name: "slow", Run: func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}}})

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-started

	job.Run()
	close(release)
	<-done

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (overlapping run skipped)", got)
	}
	if len(log.warns) != 1 {
		t.Errorf("warns = %v, want one skip warning", log.warns)
	}
}

func TestScheduler_RecoversPanics(t *testing.T) {
	t.Parallel()

	log := newRecordLogger()
	s := New(log)

	job := dispatch(s, &entry{job: Job{Name: "boom", Run: func(context.Context) error {
		panic("broken job")
	}}})
	job.Run()

	if len(log.errors) != 1 || log.errors[0] != "Scheduled job panicked" {
		t.Errorf("errors = %v, want the recovered panic", log.errors)
	}
}

func TestScheduler_RunAppliesTimeoutAndLogsErrors(t *testing.T) {
	t.Parallel()

	s := New(infralogger.NewNop())
	var sawDeadline atomic.Bool

	e := &entry{job: Job{Name: "bounded", Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}}}
	s.run(e)

	if !sawDeadline.Load() {
		t.Error("job context should hit its deadline")
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	t.Parallel()

	s := New(infralogger.NewNop())
	s.Start()
	if err := s.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if s.ctx.Err() == nil {
		t.Error("job context should be cancelled after Stop")
	}
}
