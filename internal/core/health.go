package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole /health run.
const healthCheckTimeout = 2 * time.Second

// HealthProbe checks one dependency (license database, usage store).
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// ProbeFunc adapts a ping function into a HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

// Name implements HealthProbe.
func (p ProbeFunc) Name() string                    { return p.ProbeName }
// Check implements HealthProbe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

type probeResult struct {
	name string
	err  error
}

// HandleHealth runs every probe concurrently. It answers 200 when all pass
// and 503 when any fails or has not answered by the deadline.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Buffered so late probes never block after the handler has returned.
	results := make(chan probeResult, len(s.HealthProbes))
	for _, probe := range s.HealthProbes {
		go func(p HealthProbe) {
			results <- probeResult{name: p.Name(), err: runProbe(ctx, p)}
		}(probe)
	}

	components := make(map[string]componentStatus, len(s.HealthProbes))
	healthy := true
collect:
	for range s.HealthProbes {
		select {
		case res := <-results:
			if res.err != nil {
				healthy = false
				components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
				continue
			}
			components[res.name] = componentStatus{Status: "healthy"}
		case <-ctx.Done():
			break collect
		}
	}
	for _, probe := range s.HealthProbes {
		if _, ok := components[probe.Name()]; !ok {
			healthy = false
			components[probe.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
		}
	}

	if !healthy {
		s.Logger.Warn("health check failed", "components", components)
		JSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Components: components})
		return
	}
	JSON(w, r, http.StatusOK, healthResponse{Status: "healthy", Components: components})
}

// runProbe calls p.Check, converting a panic into an error.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("probe panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
