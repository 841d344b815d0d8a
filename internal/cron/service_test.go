package cron

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/payoutledger/pkg/logger"
	"github.com/angelmondragon/payoutledger/pkg/metrics"
)

type fakeLock struct {
	mtx  sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLock) Acquire(_ context.Context, job string) (bool, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[job] {
		return false, nil
	}
	f.held[job] = true
	return true, nil
}

func (f *fakeLock) Release(_ context.Context, job string) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	delete(f.held, job)
	return nil
}

type testJob struct {
	mtx  sync.Mutex
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.runs++
	return t.err
}

func (t *testJob) count() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.runs
}

func newTestService(t *testing.T, registry *Registry, lock Lock, interval time.Duration) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		Interval: interval,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestServiceRunOnce(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service := newTestService(t, NewRegistry(success, failure), &fakeLock{}, 0)
	ctx := context.Background()

	if err := service.RunOnce(ctx, "success"); err != nil {
		t.Fatalf("run success: %v", err)
	}
	if err := service.RunOnce(ctx, "fail"); err == nil {
		t.Fatal("expected job error")
	}
	if err := service.RunOnce(ctx, "missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
	if success.count() != 1 || failure.count() != 1 {
		t.Fatalf("unexpected runs: success=%d fail=%d", success.count(), failure.count())
	}
}

func TestServiceSkipsJobWhenLockHeld(t *testing.T) {
	job := &testJob{name: "surveyor-freeze"}
	lock := &fakeLock{held: map[string]bool{"surveyor-freeze": true}}
	service := newTestService(t, NewRegistry(job), lock, 0)

	if err := service.RunOnce(context.Background(), "surveyor-freeze"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.count() != 0 {
		t.Fatalf("job should not run while another instance holds the lock")
	}
}

func TestServiceReportsLockErrors(t *testing.T) {
	job := &testJob{name: "a"}
	service := newTestService(t, NewRegistry(job), &fakeLock{err: errors.New("redis down")}, 0)
	if err := service.RunOnce(context.Background(), "a"); err == nil {
		t.Fatal("expected lock error")
	}
	if job.count() != 0 {
		t.Fatal("job must not run without the lock")
	}
}

func TestServiceRunSchedulesIntervalJobs(t *testing.T) {
	job := &testJob{name: "tick"}
	service := newTestService(t, NewRegistry(job), &fakeLock{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for job.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if job.count() == 0 {
		t.Fatal("expected the interval job to run")
	}
}
