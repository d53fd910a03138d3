package worker

import (
	"context"
	"time"

	"github.com/bugtally/notify-engine/internal/service/digest"
	"github.com/bugtally/notify-engine/pkg/logger"
)

type DigestProcessorConfig struct {
	PollInterval time.Duration
}

// DigestProcessor drives the digest scheduler on a fixed interval. The
// scheduler itself is idempotent, so an overlapping or repeated tick is
// harmless.
type DigestProcessor struct {
	scheduler *digest.Scheduler
	config    DigestProcessorConfig
	logger    *logger.Logger
}

func NewDigestProcessor(scheduler *digest.Scheduler, config DigestProcessorConfig, logger *logger.Logger) *DigestProcessor {
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}

	return &DigestProcessor{
		scheduler: scheduler,
		config:    config,
		logger:    logger,
	}
}

func (p *DigestProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting digest processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down digest processor")
			return
		case <-ticker.C:
			if err := p.scheduler.ProcessPendingDigests(ctx); err != nil {
				p.logger.Error(err, "Failed to process digests")
			}
		}
	}
}
