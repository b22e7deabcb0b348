package health

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jonwraymond/datahub/resilience"
)

// WorkerChecker verifies that the worker executable can be started.
type WorkerChecker struct {
	command string
}

var _ Checker = (*WorkerChecker)(nil)

// NewWorkerChecker checks the worker binary named by command.
func NewWorkerChecker(command string) *WorkerChecker {
	return &WorkerChecker{command: command}
}

func (w *WorkerChecker) Name() string { return "worker" }

func (w *WorkerChecker) Check(ctx context.Context) Result {
	path, err := exec.LookPath(w.command)
	if err != nil {
		return Unhealthy(fmt.Sprintf("worker command %q not executable", w.command), err)
	}
	return Healthy("worker command found").WithDetails(map[string]any{"path": path})
}

// CapacityChecker reports degraded while every worker slot is taken.
type CapacityChecker struct {
	bulkhead *resilience.Bulkhead
}

var _ Checker = (*CapacityChecker)(nil)

// NewCapacityChecker watches b.
func NewCapacityChecker(b *resilience.Bulkhead) *CapacityChecker {
	return &CapacityChecker{bulkhead: b}
}

func (c *CapacityChecker) Name() string { return "worker_capacity" }

func (c *CapacityChecker) Check(ctx context.Context) Result {
	m := c.bulkhead.Metrics()
	details := map[string]any{
		"active":         m.Active,
		"max_active":     m.MaxActive,
		"max_concurrent": m.MaxConcurrent,
		"rejected":       m.Rejected,
	}
	if m.Available <= 0 {
		return Degraded("all worker slots busy").WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d of %d worker slots free", m.Available, m.MaxConcurrent)).WithDetails(details)
}
