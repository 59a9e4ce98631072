package service

import (
	"context"
	"time"

	"nexttale/shared/interfaces"
	"nexttale/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResolutionPoller waits for a placeholder to be filled by someone else.
type ResolutionPoller struct {
	nodeRepo interfaces.StoryNodeRepository
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewResolutionPoller(nodeRepo interfaces.StoryNodeRepository, interval, timeout time.Duration, logger *zap.Logger) *ResolutionPoller {
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &ResolutionPoller{
		nodeRepo: nodeRepo,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("ResolutionPoller"),
	}
}

// WaitForResolution re-reads the node every interval until it has content or the
// poll timeout elapses. The last read happens at the timeout itself. A timeout
// returns (nil, false) and is not an error. Cancelling ctx does not stop the wait;
// only the poller's own timeout does.
func (p *ResolutionPoller) WaitForResolution(ctx context.Context, nodeID uuid.UUID) (*models.StoryNode, bool) {
	log := p.logger.With(zap.Stringer("nodeID", nodeID))
	started := time.Now()
	deadline := started.Add(p.timeout)

	// The read at the deadline gets one interval to complete.
	pollCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline.Add(p.interval))
	defer cancel()

	timer := time.NewTimer(min(p.interval, p.timeout))
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-pollCtx.Done():
			log.Debug("Placeholder not resolved before timeout", zap.Int("attempts", attempt-1))
			observeWait(started, false)
			return nil, false
		case <-timer.C:
		}

		node, err := p.nodeRepo.GetByID(pollCtx, nodeID)
		if err != nil {
			log.Warn("Failed to poll placeholder", zap.Int("attempt", attempt), zap.Error(err))
		} else if node.IsResolved() {
			log.Info("Placeholder resolved by another writer", zap.Int("attempt", attempt), zap.Duration("waited", time.Since(started)))
			observeWait(started, true)
			return node, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Debug("Placeholder not resolved", zap.Int("attempts", attempt), zap.Duration("waited", time.Since(started)))
			observeWait(started, false)
			return nil, false
		}
		timer.Reset(min(p.interval, remaining))
	}
}
