package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
)

func TestPublishWithNilClientIsNoop(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	p.Publish(ChannelNewEvent, "payload")
	stats := p.Stats()
	assert.Equal(t, int64(0), stats.Published)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestSubscribeWithNilClientReturnsNil(t *testing.T) {
	s := NewSubscriber(nil)
	ch := s.Subscribe(context.Background(), ChannelNewEvent)
	assert.Nil(t, ch)
}

func TestStopWithNilClientDoesNotBlock(t *testing.T) {
	p := New(zerolog.Nop(), nil)
	p.Stop()
}
