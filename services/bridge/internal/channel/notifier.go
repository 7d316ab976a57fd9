package channel

import (
	"context"
	"errors"

	"github.com/diagnosis/tablelink/pkg/logger"
)

// SendResult is the outcome of a best-effort send. Skipped means the
// channel is not configured; Err holds any other failure.
type SendResult struct {
	Delivered bool
	Skipped   bool
	Err       error
}

// Notifier wraps a Sender so that failed replies never reach the caller as
// errors.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) Notify(ctx context.Context, to, text string) SendResult {
	if n == nil || n.sender == nil {
		logger.WarnContext(ctx, "Reply skipped: no channel sender")
		return SendResult{Skipped: true}
	}

	err := n.sender.SendText(ctx, to, text)
	switch {
	case err == nil:
		return SendResult{Delivered: true}
	case errors.Is(err, ErrMissingChannelCredentials):
		logger.WarnContext(ctx, "Reply skipped: channel credentials missing", "to", logger.MaskPhone(to))
		return SendResult{Skipped: true}
	default:
		logger.ErrorContext(ctx, "Failed to send reply", "to", logger.MaskPhone(to), "error", err)
		return SendResult{Err: err}
	}
}
