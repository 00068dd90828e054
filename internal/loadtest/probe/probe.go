// Package probe times issued requests and feeds the live window.
package probe

import (
	"context"
	"time"

	"github.com/wesleyorama2/loadreport/internal/loadtest/driver"
	"github.com/wesleyorama2/loadreport/internal/loadtest/httpclient"
	"github.com/wesleyorama2/loadreport/internal/loadtest/window"
)

// Issuer performs a request for a path relative to the target host.
type Issuer interface {
	Issue(ctx context.Context, path string) httpclient.Outcome
}

// Probe wraps an Issuer and records exactly one sample per request.
type Probe struct {
	window *window.Window
	issuer Issuer
	now    func() time.Time
}

// New creates a probe recording into w.
func New(w *window.Window, issuer Issuer) *Probe {
	return &Probe{window: w, issuer: issuer, now: time.Now}
}

// Hit issues one request and records its outcome. Failures are recorded, not
// returned. A request cancelled by ctx is not recorded.
func (p *Probe) Hit(ctx context.Context, path string) {
	start := p.now()
	outcome := p.issuer.Issue(ctx, path)
	elapsed := p.now().Sub(start)

	if outcome.Cancelled {
		return
	}

	p.window.Record(outcome.OK, float64(elapsed)/float64(time.Millisecond))
}

// Task returns a driver task body hitting path.
func (p *Probe) Task(path string) driver.TaskFunc {
	if path == "" {
		panic("probe: empty task path")
	}
	return func(ctx context.Context) {
		p.Hit(ctx, path)
	}
}

var _ Issuer = (*httpclient.Client)(nil)
