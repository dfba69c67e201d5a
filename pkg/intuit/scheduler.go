package intuit

import (
	"context"
	"time"

	"github.com/solarix/connector/pkg/connector"
)

// Scheduler runs the two periodic authorization chores: a proactive token
// refresh and a read-only healthcheck probing for silent authorization
// decay. The two are deliberately independent; a failing healthcheck is
// logged but never triggers a refresh itself, keeping detection decoupled
// from repair.
type Scheduler struct {
	auth    *Authorizer
	gateway *Client
	log     connector.Logger

	refreshEvery time.Duration
	healthEvery  time.Duration
}

// NewScheduler creates the background scheduler. Either interval may be
// zero to disable that chore.
func NewScheduler(auth *Authorizer, gateway *Client, refreshEvery, healthEvery time.Duration, log connector.Logger) *Scheduler {
	if log == nil {
		log = &connector.NoopLogger{}
	}
	return &Scheduler{
		auth:         auth,
		gateway:      gateway,
		log:          log,
		refreshEvery: refreshEvery,
		healthEvery:  healthEvery,
	}
}

// Run blocks until ctx is canceled, firing the chores on their intervals.
func (s *Scheduler) Run(ctx context.Context) {
	var refreshC, healthC <-chan time.Time

	if s.refreshEvery > 0 {
		refresh := time.NewTicker(s.refreshEvery)
		defer refresh.Stop()
		refreshC = refresh.C
	}
	if s.healthEvery > 0 {
		health := time.NewTicker(s.healthEvery)
		defer health.Stop()
		healthC = health.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-refreshC:
			s.runRefresh(ctx)
		case <-healthC:
			s.runHealthcheck(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	// Alerts stay suppressed on the schedule; every tick of an expired
	// pair would otherwise mail the operator.
	if _, err := s.auth.Refresh(ctx, RefreshOptions{SendAlerts: false}); err != nil {
		s.log.Warn("scheduled token refresh failed", connector.Field{Key: "error", Value: err.Error()})
		return
	}
	s.log.Debug("scheduled token refresh succeeded")
}

func (s *Scheduler) runHealthcheck(ctx context.Context) {
	if s.gateway == nil {
		return
	}
	if _, err := s.gateway.CompanyInfoRead(ctx); err != nil {
		s.log.Error("intuit healthcheck failed", connector.Field{Key: "error", Value: err.Error()})
		return
	}
	s.log.Debug("intuit healthcheck succeeded")
}
