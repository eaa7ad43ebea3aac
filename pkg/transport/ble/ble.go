// Package ble implements the Nordic UART Service (NUS) BLE transport:
// one RX (write) characteristic, one TX (notify) characteristic, and the
// same reader/writer task split as pkg/transport/serial, over
// tinygo.org/x/bluetooth. The characteristic table is a static
// descriptor, grounded on the teacher's BLECharacteristic struct and
// CharXxx table in pkg/ble/types.go, repurposed from the teacher's
// scooter-telemetry characteristics to the two NUS characteristics this
// spec needs.
package ble

import (
	"fmt"
	"log"

	"tinygo.org/x/bluetooth"

	"github.com/librescoot/walkie-textie/pkg/dispatcher"
	"github.com/librescoot/walkie-textie/pkg/frame"
	"github.com/librescoot/walkie-textie/pkg/protocol"
)

// MaxChunkSize bounds a single BLE write/notify payload (spec.md §4.10).
const MaxChunkSize = 128

// Characteristic is the declarative descriptor shape adapted from the
// teacher's BLECharacteristic struct (pkg/ble/types.go), trimmed to what
// a GATT server actually needs to build a bluetooth.CharacteristicConfig.
type Characteristic struct {
	UUID        bluetooth.UUID
	Name        string
	IsWritable  bool
	IsNotifying bool
}

var (
	serviceUUID = mustParseUUID("6E400001-B5A3-F393-E0A9-E50E24DCCA9E")
	rxUUID      = mustParseUUID("6E400002-B5A3-F393-E0A9-E50E24DCCA9E")
	txUUID      = mustParseUUID("6E400003-B5A3-F393-E0A9-E50E24DCCA9E")
)

// Characteristics is the static NUS table this transport exposes.
var Characteristics = []Characteristic{
	{UUID: rxUUID, Name: "NUS RX", IsWritable: true},
	{UUID: txUUID, Name: "NUS TX", IsNotifying: true},
}

func mustParseUUID(s string) bluetooth.UUID {
	id, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("ble: invalid UUID literal %q: %v", s, err))
	}
	return id
}

// Transport binds a single BLE connection to the dispatcher's command
// queue and response bus, applying the same source filter as the serial
// writer.
type Transport struct {
	adapter *bluetooth.Adapter
	source  protocol.Source
	seq     uint16

	commands chan<- protocol.CommandEnvelope
	reboot   chan<- struct{}
	bus      *dispatcher.Bus

	acc    *frame.Accumulator
	txChar bluetooth.Characteristic
	rxChar bluetooth.Characteristic
}

// New returns a Transport over the default BLE adapter. reboot receives a
// signal whenever a Reboot command is decoded, diverted before it ever
// reaches commands — see SPEC_FULL.md's Dispatcher module section.
func New(commands chan<- protocol.CommandEnvelope, reboot chan<- struct{}, bus *dispatcher.Bus) *Transport {
	return &Transport{
		adapter:  bluetooth.DefaultAdapter,
		source:   protocol.SourceBLE,
		commands: commands,
		reboot:   reboot,
		bus:      bus,
		acc:      frame.NewAccumulator(),
	}
}

// AdvertisingName renders "WalkieTextie-<6 hex>" from the low 3 bytes of
// id, per spec.md §4.10.
func AdvertisingName(id [3]byte) string {
	return fmt.Sprintf("WalkieTextie-%02X%02X%02X", id[0], id[1], id[2])
}

// RandomAddress renders the spec's fixed random-address suffix
// [id0, id1, id2, 0x1E, 0x83, 0xE7].
func RandomAddress(id [3]byte) [6]byte {
	return [6]byte{id[0], id[1], id[2], 0x1E, 0x83, 0xE7}
}

// Start enables the adapter, registers the NUS service and its two
// characteristics, and begins advertising under the spec's naming
// convention. It does not block.
func (t *Transport) Start(id [3]byte) error {
	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}
	for _, c := range Characteristics {
		log.Printf("ble: registering characteristic %s (write=%v notify=%v)", c.Name, c.IsWritable, c.IsNotifying)
	}

	if err := t.adapter.AddService(&bluetooth.Service{
		UUID: serviceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &t.rxChar,
				UUID:   rxUUID,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					t.onWrite(value)
				},
			},
			{
				Handle: &t.txChar,
				UUID:   txUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission,
			},
		},
	}); err != nil {
		return fmt.Errorf("ble: add NUS service: %w", err)
	}

	adv := t.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    AdvertisingName(id),
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
	}); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}

	log.Printf("ble: advertising as %s", AdvertisingName(id))
	return nil
}

// onWrite feeds inbound bytes to the frame accumulator, exactly mirroring
// the serial reader's byte-at-a-time handling (spec.md §4.8), since a
// BLE write event may deliver a whole COBS frame or only a fragment of
// one depending on the central's MTU.
func (t *Transport) onWrite(value []byte) {
	for _, b := range value {
		encoded, complete := t.acc.Push(b)
		if !complete {
			continue
		}
		t.handleFrame(encoded)
	}
}

func (t *Transport) handleFrame(encoded []byte) {
	t.seq++
	seq := t.seq

	decoded, err := frame.Decode(append(encoded, 0))
	if err != nil {
		log.Printf("ble: cobs decode failed: %v", err)
		t.bus.Publish(protocol.CommandReply(t.source, seq, protocol.ErrorResponse(protocol.StatusCrcError, 0x00)))
		return
	}

	cmd, err := protocol.ParseCommand(decoded)
	if err != nil {
		originalID := byte(0x00)
		if len(decoded) > 1 {
			originalID = decoded[1]
		}
		log.Printf("ble: parse failed: %v", err)
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

// RunWriter subscribes to the response bus, applies the source filter,
// and notifies each accepted response's COBS-encoded bytes in
// MaxChunkSize chunks.
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
			t.notify(msg.Response)
		}
	}
}

func (t *Transport) notify(resp protocol.Response) {
	built, err := protocol.BuildResponse(resp)
	if err != nil {
		log.Printf("ble: build response failed: %v", err)
		return
	}
	encoded := frame.Encode(built)
	for len(encoded) > 0 {
		n := len(encoded)
		if n > MaxChunkSize {
			n = MaxChunkSize
		}
		if _, err := t.txChar.Write(encoded[:n]); err != nil {
			log.Printf("ble: notify failed: %v", err)
			return
		}
		encoded = encoded[n:]
	}
}
