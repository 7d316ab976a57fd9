package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, string, interface{}) error {
	f.calls++
	return errors.New("nats: connection closed")
}

func (f *failingPublisher) Close() error { return nil }

func TestPublishBestEffort(t *testing.T) {
	p := &failingPublisher{}
	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), p, LinkIssued, LinkIssuedEvent{Code: "abc"})
	})
	assert.Equal(t, 1, p.calls)

	assert.NotPanics(t, func() {
		PublishBestEffort(context.Background(), nil, LinkIssued, nil)
	})
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), LinkRedeemed, LinkRedeemedEvent{Code: "abc"}))
	assert.NoError(t, p.Close())
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1")
	assert.Error(t, err)
}
