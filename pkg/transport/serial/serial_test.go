package serial

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librescoot/walkie-textie/pkg/dispatcher"
	"github.com/librescoot/walkie-textie/pkg/frame"
	"github.com/librescoot/walkie-textie/pkg/protocol"
)

// fakePort is an io.ReadWriter backed by separate in/out buffers so reader
// and writer tests can run without a real serial device.
type fakePort struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func newFakePort(inbound []byte) *fakePort {
	return &fakePort{in: bytes.NewReader(inbound)}
}

func (f *fakePort) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakePort) Write(p []byte) (int, error) { return f.out.Write(p) }

func encodedCommand(t *testing.T, cmd protocol.Command) []byte {
	t.Helper()
	built, err := protocol.BuildCommand(cmd)
	require.NoError(t, err)
	return frame.Encode(built)
}

func TestRunReaderEnqueuesDecodedCommand(t *testing.T) {
	port := newFakePort(encodedCommand(t, protocol.Command{Kind: protocol.CommandGetVersion}))
	commands := dispatcher.NewCommandQueue()
	reboot := make(chan struct{}, 1)
	bus := dispatcher.NewBus()
	tr := New(port, protocol.SourceSerial, commands, reboot, bus)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { tr.RunReader(stop); close(done) }()

	select {
	case env := <-commands:
		require.Equal(t, protocol.CommandGetVersion, env.Command.Kind)
		require.Equal(t, protocol.SourceSerial, env.Source)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded command")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunReader did not return on EOF")
	}
}

func TestRunReaderDivertsRebootBeforeQueue(t *testing.T) {
	port := newFakePort(encodedCommand(t, protocol.Command{Kind: protocol.CommandReboot}))
	commands := dispatcher.NewCommandQueue()
	reboot := make(chan struct{}, 1)
	bus := dispatcher.NewBus()
	tr := New(port, protocol.SourceSerial, commands, reboot, bus)

	tr.RunReader(make(chan struct{}))

	select {
	case <-reboot:
	default:
		t.Fatal("expected a reboot signal")
	}
	require.Empty(t, commands, "Reboot must never reach the command queue")
}

func TestRunReaderPublishesErrorOnCorruptFrame(t *testing.T) {
	encoded := encodedCommand(t, protocol.Command{Kind: protocol.CommandGetVersion})
	encoded[0] ^= 0xFF // corrupt the COBS-encoded payload

	port := newFakePort(encoded)
	commands := dispatcher.NewCommandQueue()
	reboot := make(chan struct{}, 1)
	bus := dispatcher.NewBus()
	sub := bus.Subscribe()
	tr := New(port, protocol.SourceSerial, commands, reboot, bus)

	tr.RunReader(make(chan struct{}))

	select {
	case msg := <-sub:
		require.Equal(t, protocol.ResponseMessageCommand, msg.Kind)
		require.Equal(t, protocol.ResponseError, msg.Response.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected an error reply to be published")
	}
}

func TestRunWriterFiltersBySourceAndEncodesFrame(t *testing.T) {
	port := newFakePort(nil)
	commands := dispatcher.NewCommandQueue()
	reboot := make(chan struct{}, 1)
	bus := dispatcher.NewBus()
	tr := New(port, protocol.SourceSerial, commands, reboot, bus)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { tr.RunWriter(stop); close(done) }()

	// Give RunWriter time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.Publish(protocol.CommandReply(protocol.SourceBLE, 1, protocol.TxCompleteResponse()))
	bus.Publish(protocol.CommandReply(protocol.SourceSerial, 2, protocol.VersionResponse()))

	require.Eventually(t, func() bool {
		return port.out.Len() > 0
	}, time.Second, 10*time.Millisecond)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunWriter did not return after stop")
	}

	decoded, err := frame.Decode(port.out.Bytes())
	require.NoError(t, err)
	resp, err := protocol.ParseResponse(decoded)
	require.NoError(t, err)
	require.Equal(t, protocol.VersionResponse(), resp)
}

var _ io.ReadWriter = (*fakePort)(nil)
