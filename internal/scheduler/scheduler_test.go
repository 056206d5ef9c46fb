package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"autotrader/internal/engine"
	"autotrader/internal/store"
)

type recordingRunner struct {
	mu  sync.Mutex
	ops []engine.Operation
}

func (r *recordingRunner) Dispatch(ctx context.Context, op engine.Operation, p engine.Params) (engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return engine.Result{Operation: op}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

func TestJobsSkipEmptySpecs(t *testing.T) {
	cfg := store.Default()
	cfg.Schedule.Cycle = "0 */5 * * * *"
	cfg.Schedule.Learn = ""
	cfg.Schedule.Watchlist = ""
	cfg.Schedule.Report = "0 0 18 * * 5"

	jobs := Jobs(cfg)
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Operation != engine.OpExecuteCycle || jobs[1].Operation != engine.OpWeeklyReport {
		t.Errorf("Expected execute_cycle and weekly_report, got %s and %s", jobs[0].Operation, jobs[1].Operation)
	}
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), store.Default(), &recordingRunner{})
	err := s.Register([]Job{{Spec: "every five minutes", Operation: engine.OpExecuteCycle}})
	if err == nil {
		t.Error("Expected error for invalid spec")
	}
}

func TestSchedulerFires(t *testing.T) {
	r := &recordingRunner{}
	s := New(context.Background(), store.Default(), r)
	if err := s.Register([]Job{{Spec: "* * * * * *", Operation: engine.OpTrailingCheck}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for r.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if r.count() == 0 {
		t.Error("Expected the job to fire within 3s")
	}
}
