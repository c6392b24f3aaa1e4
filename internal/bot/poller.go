package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gwi.com/verbal-diary/internal/telegram"
	"gwi.com/verbal-diary/internal/utils"
)

type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Poller feeds long-polled updates into a Dispatcher.
type Poller struct {
	source     UpdateSource
	dispatcher *Dispatcher
	timeout    time.Duration
	backoff    time.Duration
	logger     *slog.Logger
}

func NewPoller(source UpdateSource, dispatcher *Dispatcher, logger *slog.Logger) *Poller {
	return &Poller{
		source:     source,
		dispatcher: dispatcher,
		timeout:    30 * time.Second,
		backoff:    3 * time.Second,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
func (p *Poller) Run(ctx context.Context) error {
	defer p.dispatcher.Wait()

	var offset int64
	p.logger.Info("polling for updates")
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			p.logger.Warn("getUpdates failed", "error", err)
			if err := utils.SleepContext(ctx, p.backoff); err != nil {
				return nil
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatcher.Dispatch(ctx, u)
		}
	}
}
