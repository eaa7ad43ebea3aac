// Package dispatcher executes commands against a radio and fans out
// responses to transport subscribers. See SPEC_FULL.md's Dispatcher
// module section for the Reboot-routing decision this package encodes.
package dispatcher

import (
	"errors"
	"log"

	"github.com/librescoot/walkie-textie/pkg/protocol"
	"github.com/librescoot/walkie-textie/pkg/sx1262"
)

// Radio is the subset of sx1262.Device's surface Dispatch needs.
type Radio = sx1262.Radio

// Dispatch executes a single command against radio and returns its
// response (spec.md §4.5).
//
// Command.Reboot is not expected to reach Dispatch in normal operation —
// each transport reader diverts it onto the reboot channel before it is
// enqueued, mirroring original_source/src/tasks/admin.rs's admin_task interception
// — but Dispatch still carries the original's own defensive fallback
// (original_source/src/dispatcher/handler.rs: "Admin commands are handled
// by admin_task before reaching dispatcher. For non-embedded (tests),
// return an error") so a direct call never panics or goes unhandled.
func Dispatch(radio Radio, cmd protocol.Command) protocol.Response {
	switch cmd.Kind {
	case protocol.CommandGetVersion:
		return protocol.VersionResponse()
	case protocol.CommandReboot:
		return protocol.ErrorResponse(protocol.StatusInvalidCommand, cmd.ID())
	case protocol.CommandLoraTx:
		return handleLoraTx(radio, cmd.Data)
	default:
		return protocol.ErrorResponse(protocol.StatusInvalidCommand, cmd.ID())
	}
}

func handleLoraTx(radio Radio, data []byte) protocol.Response {
	if err := radio.Transmit(data); err != nil {
		if errors.Is(err, sx1262.ErrTimeout) {
			log.Printf("dispatcher: lora tx timeout: %v", err)
			return protocol.ErrorResponse(protocol.StatusTimeout, protocol.CommandIDLoraTx)
		}
		log.Printf("dispatcher: lora tx failed: %v", err)
		return protocol.ErrorResponse(protocol.StatusLoraError, protocol.CommandIDLoraTx)
	}
	return protocol.TxCompleteResponse()
}
