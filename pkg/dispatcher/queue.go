package dispatcher

import "github.com/librescoot/walkie-textie/pkg/protocol"

// QueueCapacity is the bounded depth of the command queue (spec.md §4.6):
// multi-producer (the two transport reader tasks), single-consumer (the
// radio task).
const QueueCapacity = 8

// NewCommandQueue returns a bounded channel for CommandEnvelopes. It is a
// thin, documented alias over a plain Go channel — the MPSC discipline is
// enforced by convention (exactly one goroutine ranges over it), matching
// the teacher's Service struct owning a single stopCh rather than a
// dedicated queue type.
func NewCommandQueue() chan protocol.CommandEnvelope {
	return make(chan protocol.CommandEnvelope, QueueCapacity)
}
