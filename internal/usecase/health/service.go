package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 2 * time.Second

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a non-critical component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates a critical component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component is one dependency checked by the service.
type Component struct {
	Name string
	// Critical components make the service unhealthy when they fail.
	Critical bool
	Check    func(ctx context.Context) error
}

// Store builds a component from a store pinger.
func Store(name string, p Pinger, critical bool) Component {
	return Component{Name: name, Critical: critical, Check: p.Ping}
}

// Embedding builds a non-critical component from an embedding provider.
func Embedding(name string, c EmbeddingChecker) Component {
	return Component{Name: name, Check: c.HealthCheck}
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
}

// New creates a Service probing components. A zero timeout uses 2s per check.
func New(timeout time.Duration, components ...Component) *Service {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Service{components: components, timeout: timeout}
}

// Check queries every component concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.components))
		status = Healthy
	)

	var g errgroup.Group
	for _, c := range s.components {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			result := CheckOK
			if err := c.Check(cctx); err != nil {
				result = CheckError
			}

			mu.Lock()
			defer mu.Unlock()
			checks[c.Name] = result
			if result == CheckError {
				switch {
				case c.Critical:
					status = Unhealthy
				case status == Healthy:
					status = Degraded
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Checks: checks}
}
