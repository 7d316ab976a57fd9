package channel

import (
	"context"

	"github.com/diagnosis/tablelink/pkg/logger"
)

// DevSender logs outbound messages instead of delivering them.
type DevSender struct{}

func (DevSender) SendText(ctx context.Context, to, text string) error {
	logger.InfoContext(ctx, "Dev channel message", "to", logger.MaskPhone(to), "text", text)
	return nil
}
