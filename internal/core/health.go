package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole /health request.
const healthCheckTimeout = 2 * time.Second

const (
	healthOK          = "ok"
	healthUnavailable = "unavailable"
)

// HealthProbe checks one dependency the API cannot serve without: the
// Postgres event store and the delay queue backend.
type HealthProbe interface {
	Name() string
	// Check must honour the context deadline.
	Check(ctx context.Context) error
}

// PingProbe adapts a ping function (pgxpool.Pool.Ping, a Redis PING) to
// HealthProbe.
type PingProbe struct {
	Label string
	Ping  func(ctx context.Context) error
}

func (p PingProbe) Name() string { return p.Label }

func (p PingProbe) Check(ctx context.Context) error { return p.Ping(ctx) }

// checkReport is one dependency's entry in the health response.
type checkReport struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Queue   string                 `json:"queue_backend,omitempty"`
	Checks  map[string]checkReport `json:"checks,omitempty"`
}

type probeOutcome struct {
	name    string
	err     error
	latency time.Duration
}

// HandleHealth pings every dependency concurrently. It answers 200 when all
// of them respond in time and 503 otherwise; a probe still running at the
// deadline is reported as timed out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: healthOK, Checks: make(map[string]checkReport, len(s.HealthProbes))}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
		resp.Queue = s.Config.Queue.Backend
	}

	// Buffered so a probe that overruns the deadline never blocks.
	outcomes := make(chan probeOutcome, len(s.HealthProbes))
	for _, probe := range s.HealthProbes {
		probe := probe
		go func() {
			start := time.Now()
			err := runProbe(ctx, probe)
			outcomes <- probeOutcome{name: probe.Name(), err: err, latency: time.Since(start)}
		}()
	}

	for range s.HealthProbes {
		select {
		case o := <-outcomes:
			report := checkReport{Status: healthOK, LatencyMS: o.latency.Milliseconds()}
			if o.err != nil {
				report.Status = healthUnavailable
				report.Error = o.err.Error()
			}
			resp.Checks[o.name] = report
		case <-ctx.Done():
		}
	}

	for _, probe := range s.HealthProbes {
		if _, ok := resp.Checks[probe.Name()]; !ok {
			resp.Checks[probe.Name()] = checkReport{
				Status:    healthUnavailable,
				LatencyMS: healthCheckTimeout.Milliseconds(),
				Error:     "health check timed out",
			}
		}
		if resp.Checks[probe.Name()].Status != healthOK {
			resp.Status = healthUnavailable
		}
	}

	status := http.StatusOK
	if resp.Status != healthOK {
		status = http.StatusServiceUnavailable
		s.Logger.WarnContext(r.Context(), "health check failed", "checks", resp.Checks)
	}
	JSON(w, r, status, resp)
}

func runProbe(ctx context.Context, probe HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return probe.Check(ctx)
}
