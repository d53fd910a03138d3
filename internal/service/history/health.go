package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bugtally/notify-engine/internal/model"
)

const (
	healthWindow       = 24 * time.Hour
	healthyRateMinimum = 0.80
	maxErrorSamples    = 3
)

// CheckChannelHealth derives a health report for one channel from its
// trailing 24 hours of audit entries. A channel with no attempts in the
// window is reported as no-traffic, which is distinct from unhealthy.
func (s *Service) CheckChannelHealth(ctx context.Context, channel string) (*model.ChannelHealthReport, error) {
	since := s.clock.Now().Add(-healthWindow).Unix()

	successes, failures, err := s.audit.CountByStatus(ctx, channel, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit counts for channel %s: %w", channel, err)
	}

	report := &model.ChannelHealthReport{Channel: channel}
	attempts := successes + failures
	if attempts == 0 {
		report.NoTraffic = true
		report.Healthy = true
		return report, nil
	}

	report.Attempts = attempts
	report.Successes = successes
	report.SuccessRate = float64(successes) / float64(attempts)
	report.Healthy = report.SuccessRate >= healthyRateMinimum

	if !report.Healthy {
		report.Issues = append(report.Issues,
			fmt.Sprintf("success rate %.0f%% over last 24h (%d of %d attempts)",
				report.SuccessRate*100, successes, attempts))

		samples, err := s.audit.RecentErrors(ctx, channel, since, maxErrorSamples)
		if err != nil {
			s.logger.Error(err, "failed to load recent channel errors", "channel", channel)
		} else {
			report.Issues = append(report.Issues, samples...)
		}
	}

	return report, nil
}
