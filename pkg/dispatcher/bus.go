package dispatcher

import (
	"sync"

	"github.com/librescoot/walkie-textie/pkg/protocol"
)

// BusCapacity is the bounded depth of the response bus and every
// subscriber's channel (spec.md §4.6).
const BusCapacity = 8

// Bus is the response publish/subscribe channel: one publisher (the
// radio task), at least two live subscribers (one per transport writer
// task). It performs no filtering itself — each subscriber applies the
// §4.6 source filter with Accepts, mirroring how
// original_source/src/tasks/serial.rs's serial_writer_task filters after
// receiving from its own subscription, and generalizing the teacher's
// "one goroutine per subscriber drains its own channel" shape from
// pkg/service/redis_handlers.go's SubscribeToRedisChannels.
type Bus struct {
	mu   sync.Mutex
	subs []chan protocol.ResponseMessage
}

// NewBus returns an empty response bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its channel. The
// channel is closed by Unsubscribe; callers should range over it.
func (b *Bus) Subscribe() <-chan protocol.ResponseMessage {
	ch := make(chan protocol.ResponseMessage, BusCapacity)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by
// Subscribe. Safe to call once per subscription.
func (b *Bus) Unsubscribe(ch <-chan protocol.ResponseMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == ch {
			close(s)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish fans msg out to every live subscriber. A subscriber whose
// channel is full is skipped rather than blocking the publisher — the
// bus is bounded by design (spec.md §4.6), and a stalled subscriber must
// not stall the radio task.
func (b *Bus) Publish(msg protocol.ResponseMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s <- msg:
		default:
		}
	}
}

// Accepts implements the spec.md §4.6 source filter: every Unsolicited
// message is accepted by every subscriber; a Command reply is accepted
// only by the subscriber whose source matches the reply's source.
func Accepts(msg protocol.ResponseMessage, mySource protocol.Source) bool {
	if msg.Kind == protocol.ResponseMessageUnsolicited {
		return true
	}
	return msg.Source == mySource
}
