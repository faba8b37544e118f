// Package health is the background health-probe loop of spec.md section
// 4.7: every interval, probe each enabled worker and refresh the
// registry's advisory healthy bit. The selector never trusts this bit —
// it always re-probes at dispatch time — but the bit feeds the UI and the
// progress monitor's reconnect loop.
package health

import (
	"context"
	"time"

	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/workerclient"
)

// Prober runs as a single goroutine, started by Run and stopped via
// context cancellation.
type Prober struct {
	reg      *registry.Registry
	client   *workerclient.Client
	interval time.Duration
	timeout  time.Duration
	log      *gatewaylog.Logger
}

// New builds a Prober. interval defaults to 30s, timeout to 5s, per
// spec.md section 4.7 / 4.3.
func New(reg *registry.Registry, client *workerclient.Client, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		reg: reg, client: client, interval: interval, timeout: timeout,
		log: gatewaylog.Default().WithComponent("health_prober"),
	}
}

// Run loops until ctx is cancelled, running one probe pass per interval.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce runs a single pass over every enabled worker.
func (p *Prober) ProbeOnce(ctx context.Context) {
	for _, w := range p.reg.List() {
		if !w.Enabled {
			continue
		}
		user, pass := p.reg.Auth(w.WorkerID)
		ok, detail := p.client.HealthProbe(ctx, w.BaseURL, workerclient.Auth{Username: user, Password: pass}, p.timeout)
		if !ok {
			p.log.Debug("worker unhealthy", map[string]interface{}{"worker_id": w.WorkerID, "detail": string(detail)})
		}
		p.reg.UpdateLoad(w.WorkerID, w.QueueRunning, w.QueuePending, ok)
	}
}
