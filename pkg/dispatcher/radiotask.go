package dispatcher

import (
	"errors"
	"log"
	"time"

	"github.com/librescoot/walkie-textie/pkg/protocol"
	"github.com/librescoot/walkie-textie/pkg/sx1262"
)

// RxPollInterval is the radio task's receive poll cadence (spec.md §4.7),
// grounded on original_source/src/tasks/lora.rs's RX_POLL_INTERVAL_MS.
const RxPollInterval = 500 * time.Millisecond

// RunRadioTask is the cooperative loop described in spec.md §4.7: poll
// for an incoming packet, publish it unsolicited, then drain the command
// queue non-blockingly, dispatching and publishing each reply. It returns
// when commands is closed or stop is closed.
func RunRadioTask(radio Radio, commands <-chan protocol.CommandEnvelope, bus *Bus, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		resp, err := radio.Receive(RxPollInterval)
		switch {
		case err == nil:
			bus.Publish(protocol.UnsolicitedMessage(resp))
		default:
			// Timeout is the expected, silent case; any other radio error is
			// logged but does not halt the loop (spec.md §7: no fatal radio
			// errors reach the main loop).
			if !errors.Is(err, sx1262.ErrTimeout) {
				log.Printf("dispatcher: radio task receive error: %v", err)
			}
		}

	drain:
		for {
			select {
			case envelope, ok := <-commands:
				if !ok {
					return
				}
				response := Dispatch(radio, envelope.Command)
				bus.Publish(protocol.CommandReply(envelope.Source, envelope.SequenceID, response))
			default:
				break drain
			}
		}
	}
}
