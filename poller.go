package ngsw

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Poller periodically re-runs Install on a schedule, for hosts that
// don't have their own deployment-triggered install signal and instead
// want the worker to notice a new manifest on its own — an additive
// convenience beyond the request-driven lifecycle spec.md §4 describes.
type Poller struct {
	controller *Controller
	cron       *cron.Cron
}

// NewPoller builds a Poller that calls Controller.Install on the given
// cron schedule (standard five-field cron syntax). It does not start
// the schedule; call Start.
func NewPoller(c *Controller, schedule string) (*Poller, error) {
	p := &Poller{controller: c, cron: cron.New()}
	if _, err := p.cron.AddFunc(schedule, p.runInstall); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Poller) runInstall() {
	ctx := context.Background()
	if err := p.controller.Install(ctx); err != nil {
		p.controller.log.Warn().Err(err).Msg("ngsw: scheduled install failed")
	}
}

// Start begins the schedule in a background goroutine.
func (p *Poller) Start() {
	p.cron.Start()
}

// Stop cancels the schedule and waits for any in-flight run to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}
