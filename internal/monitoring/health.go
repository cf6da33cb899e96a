package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// defaultProbeTimeout bounds each probe so a hung dependency cannot stall /health.
const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// HealthReport aggregates probe results.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check is a named dependency probe. Probe returns nil when the dependency is usable.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthManager runs the readiness probes of the panel's dependencies.
type HealthManager struct {
	checks  []Check
	timeout time.Duration
}

// NewHealthManager constructs a manager with the given checks; unnamed or nil probes are skipped.
func NewHealthManager(checks ...Check) *HealthManager {
	m := &HealthManager{timeout: defaultProbeTimeout}
	for _, check := range checks {
		m.Register(check)
	}
	return m
}

// Register appends a probe.
func (m *HealthManager) Register(check Check) {
	if check.Name == "" || check.Probe == nil {
		return
	}
	m.checks = append(m.checks, check)
}

// Liveness reports that the process is serving requests; it runs no probes.
func (m *HealthManager) Liveness() HealthReport {
	return HealthReport{Success: true, Status: StatusUp, Checks: []ProbeResult{}}
}

// Readiness runs every probe. Any failure marks the report down; a timed out probe
// only degrades it.
func (m *HealthManager) Readiness(ctx context.Context) HealthReport {
	report := HealthReport{
		Success: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(m.checks)),
	}

	for _, check := range m.checks {
		result := m.run(ctx, check)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			report.Success = false
			if report.Status != StatusDown {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (m *HealthManager) run(ctx context.Context, check Check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ResultFromError(check.Name, fmt.Errorf("probe panicked: %v", rec), time.Since(start))
		}
	}()

	return ResultFromError(check.Name, check.Probe(ctx), time.Since(start))
}

// ResultFromError converts a probe error into a ProbeResult.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	if duration < 0 {
		duration = 0
	}
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp, Duration: duration}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}

	return ProbeResult{
		Component: component,
		Status:    status,
		Details:   err.Error(),
		Duration:  duration,
	}
}
