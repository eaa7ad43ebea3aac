package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librescoot/walkie-textie/pkg/protocol"
)

func recvWithTimeout(t *testing.T, ch <-chan protocol.ResponseMessage) (protocol.ResponseMessage, bool) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		return msg, ok
	case <-time.After(100 * time.Millisecond):
		return protocol.ResponseMessage{}, false
	}
}

func TestBusCommandReplyOnlyReachesMatchingSource(t *testing.T) {
	bus := NewBus()
	serialSub := bus.Subscribe()
	bleSub := bus.Subscribe()

	bus.Publish(protocol.CommandReply(protocol.SourceSerial, 7, protocol.VersionResponse()))

	msg, ok := recvWithTimeout(t, serialSub)
	require.True(t, ok)
	require.True(t, Accepts(msg, protocol.SourceSerial))

	// The bus fans out to every subscriber; the BLE side's source filter
	// must reject the serial-sourced reply.
	msg, ok = recvWithTimeout(t, bleSub)
	require.True(t, ok)
	require.False(t, Accepts(msg, protocol.SourceBLE), "BLE subscriber must not accept a serial-sourced reply")
}

func TestBusUnsolicitedReachesEverySubscriber(t *testing.T) {
	bus := NewBus()
	serialSub := bus.Subscribe()
	bleSub := bus.Subscribe()

	bus.Publish(protocol.UnsolicitedMessage(protocol.RxPacketResponse([]byte("hi"), -50, 8)))

	for _, sub := range []<-chan protocol.ResponseMessage{serialSub, bleSub} {
		msg, ok := recvWithTimeout(t, sub)
		require.True(t, ok)
		require.Equal(t, protocol.ResponseMessageUnsolicited, msg.Kind)
	}
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < BusCapacity+5; i++ {
			bus.Publish(protocol.UnsolicitedMessage(protocol.TxCompleteResponse()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full, undrained subscriber channel")
	}
	require.Len(t, sub, BusCapacity)
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	_, ok := <-sub
	require.False(t, ok, "channel should be closed after Unsubscribe")
}

func TestAcceptsSourceFilter(t *testing.T) {
	cmdMsg := protocol.CommandReply(protocol.SourceBLE, 1, protocol.TxCompleteResponse())
	require.True(t, Accepts(cmdMsg, protocol.SourceBLE))
	require.False(t, Accepts(cmdMsg, protocol.SourceSerial))

	unsolicited := protocol.UnsolicitedMessage(protocol.TxCompleteResponse())
	require.True(t, Accepts(unsolicited, protocol.SourceSerial))
	require.True(t, Accepts(unsolicited, protocol.SourceBLE))
}
