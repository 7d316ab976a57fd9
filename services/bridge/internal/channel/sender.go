package channel

import (
	"context"
	"errors"
)

var ErrMissingChannelCredentials = errors.New("channel credentials not configured")

type Sender interface {
	SendText(ctx context.Context, to, text string) error
}
