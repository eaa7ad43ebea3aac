// Package serial implements the USB virtual serial transport: a reader
// task that decodes inbound frames into commands, and a writer task that
// encodes outbound responses, both bound to a github.com/tarm/serial
// port. Adapted from pkg/usock/usock.go's readLoop/processByte byte
// state machine, generalized from USOCK's own sync-frame format to drive
// the spec's zero-delimited frame.Accumulator instead.
package serial

import (
	"io"
	"log"

	"github.com/tarm/serial"

	"github.com/librescoot/walkie-textie/pkg/dispatcher"
	"github.com/librescoot/walkie-textie/pkg/frame"
	"github.com/librescoot/walkie-textie/pkg/protocol"
)

// DefaultBaudRate matches the teacher's and the spec's "115200 baud by
// convention (irrelevant over USB)" note.
const DefaultBaudRate = 115200

// Open opens the named serial device, matching the teacher's
// usock.New's port-opening shape.
func Open(device string, baud int) (*serial.Port, error) {
	return serial.OpenPort(&serial.Config{Name: device, Baud: baud})
}

// Transport binds a serial port to the dispatcher's command queue and
// response bus.
type Transport struct {
	port     io.ReadWriter
	source   protocol.Source
	seq      uint16
	commands chan<- protocol.CommandEnvelope
	reboot   chan<- struct{}
	bus      *dispatcher.Bus
}

// New returns a Transport that reads/writes port, enqueues decoded
// commands with sequence numbers wrapping from zero, and reports its
// frames under source (normally protocol.SourceSerial). reboot receives
// a signal whenever a Reboot command is decoded, diverted before it ever
// reaches commands — see SPEC_FULL.md's Dispatcher module section.
func New(port io.ReadWriter, source protocol.Source, commands chan<- protocol.CommandEnvelope, reboot chan<- struct{}, bus *dispatcher.Bus) *Transport {
	return &Transport{port: port, source: source, commands: commands, reboot: reboot, bus: bus}
}

// RunReader is the reader task (spec.md §4.8): read bytes, feed the
// accumulator, decode+parse complete frames, and enqueue or publish a
// parse-error reply.
func (t *Transport) RunReader(stop <-chan struct{}) {
	acc := frame.NewAccumulator()
	buf := make([]byte, 256)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if err == io.EOF {
				return
			}
			log.Printf("serial: read error: %v", err)
			return
		}

		for _, b := range buf[:n] {
			encoded, complete := acc.Push(b)
			if !complete {
				continue
			}
			t.handleFrame(encoded)
		}
	}
}

func (t *Transport) handleFrame(encoded []byte) {
	t.seq++
	seq := t.seq

	decoded, err := frame.Decode(append(encoded, 0))
	if err != nil {
		log.Printf("serial: cobs decode failed: %v", err)
		t.bus.Publish(protocol.CommandReply(t.source, seq, protocol.ErrorResponse(protocol.StatusCrcError, 0x00)))
		return
	}

	cmd, err := protocol.ParseCommand(decoded)
	if err != nil {
		originalID := byte(0x00)
		if len(decoded) > 1 {
			originalID = decoded[1]
		}
		log.Printf("serial: parse failed: %v", err)
		t.bus.Publish(protocol.CommandReply(t.source, seq, protocol.ErrorResponse(protocol.StatusFor(err), originalID)))
		return
	}

	if cmd.Kind == protocol.CommandReboot {
		select {
		case t.reboot <- struct{}{}:
		default:
		}
		return
	}

	t.commands <- protocol.CommandEnvelope{Command: cmd, Source: t.source, SequenceID: seq}
}

// RunWriter is the writer task (spec.md §4.9): subscribe to the response
// bus, apply the source filter, and write each accepted response as a
// complete COBS-encoded frame.
func (t *Transport) RunWriter(stop <-chan struct{}) {
	ch := t.bus.Subscribe()
	defer t.bus.Unsubscribe(ch)
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !dispatcher.Accepts(msg, t.source) {
				continue
			}
			t.write(msg.Response)
		}
	}
}

func (t *Transport) write(resp protocol.Response) {
	built, err := protocol.BuildResponse(resp)
	if err != nil {
		log.Printf("serial: build response failed: %v", err)
		return
	}
	encoded := frame.Encode(built)
	if _, err := t.port.Write(encoded); err != nil {
		log.Printf("serial: write failed: %v", err)
	}
}
