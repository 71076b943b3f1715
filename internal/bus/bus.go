// Package bus carries inbound message events from the platform adapter to
// the pipeline over a buffered channel.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"lunabot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus implements domain.MessageBus for single-process deployment.
type InMemoryBus struct {
	inbound chan domain.InboundMessage
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundMessage, bufferSize),
		logger:  logger,
	}
}

// Publish enqueues one inbound event. When the buffer is full it waits up to
// 10 seconds before dropping, so a burst degrades to latency rather than
// lost messages.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("publish to closed bus", "channel", msg.ChannelID)
		return
	}

	select {
	case b.inbound <- msg:
	default:
		b.logger.Warn("inbound bus full, waiting", "channel", msg.ChannelID, "author", msg.AuthorID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- msg:
		case <-timer.C:
			b.logger.Error("message dropped, bus full",
				"channel", msg.ChannelID,
				"author", msg.AuthorID,
			)
		}
	}
}

func (b *InMemoryBus) Inbound() <-chan domain.InboundMessage {
	return b.inbound
}

// Close stops accepting publishes and closes the inbound channel so the
// consuming pipeline loop terminates.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.inbound)
}
