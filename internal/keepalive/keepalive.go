// Package keepalive periodically requests the service's own public URL so that hosting
// platforms which idle inactive instances keep it running. It never touches session or
// permission state.
package keepalive

import (
	"context"
	"time"

	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/metrics"
)

type Pinger struct {
	url      string
	interval time.Duration
	client   *commonhttp.Client
	logger   logger.Logger
}

func New(url string, interval time.Duration, client *commonhttp.Client, log logger.Logger) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		client:   client,
		logger:   log.WithFields(map[string]interface{}{"component": "keepalive"}),
	}
}

// Run pings immediately and then once per interval until ctx is cancelled.
func (p *Pinger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.ping(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	if _, err := p.client.GetBody(ctx, p.url); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.KeepAlivePings.WithLabelValues(metrics.ResultError).Inc()
		p.logger.Warn("keep-alive ping failed", map[string]interface{}{"url": p.url, "error": err})
		return
	}
	metrics.KeepAlivePings.WithLabelValues(metrics.ResultOK).Inc()
}
