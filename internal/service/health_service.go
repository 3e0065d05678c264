package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService probes the gateway's dependencies for readiness.
type HealthService struct {
	probes  map[string]Pinger
	timeout time.Duration
	metrics *MetricsService
}

// NewHealthService constructs the service. Nil probes are ignored.
func NewHealthService(probes map[string]Pinger, timeout time.Duration, metrics *MetricsService) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	active := make(map[string]Pinger, len(probes))
	for name, p := range probes {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthService{probes: active, timeout: timeout, metrics: metrics}
}

// Check pings every dependency concurrently.
func (s *HealthService) Check(ctx context.Context) models.HealthReport {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]models.ProbeResult, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = s.ping(ctx, name, s.probes[name])
			return nil
		})
	}
	_ = g.Wait()

	report := models.HealthReport{Ready: true, Probes: results}
	for _, r := range results {
		if !r.Reachable {
			report.Ready = false
		}
	}
	return report
}

func (s *HealthService) ping(ctx context.Context, target string, p Pinger) models.ProbeResult {
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(probeCtx)
	duration := time.Since(start)

	result := models.ProbeResult{Target: target, Reachable: err == nil, Duration: duration, ObservedAt: time.Now().UTC()}
	statusCode := http.StatusOK
	if err != nil {
		result.Error = err.Error()
		statusCode = http.StatusServiceUnavailable
	}
	s.metrics.ObserveHTTPRequest(http.MethodGet, fmt.Sprintf("probe_%s", target), statusCode, duration)
	return result
}
