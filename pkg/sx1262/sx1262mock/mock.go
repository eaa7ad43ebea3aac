// Package sx1262mock provides a test double for sx1262.Radio, grounded on
// original_source/src/dispatcher/handler.rs's MockLoraRadio fixture
// (get_tx_history / set_next_tx_error) translated into idiomatic Go: a
// struct guarded by a mutex instead of a trait object.
package sx1262mock

import (
	"sync"
	"time"

	"github.com/librescoot/walkie-textie/pkg/protocol"
	"github.com/librescoot/walkie-textie/pkg/sx1262"
)

// Radio is a queue-driven stand-in for *sx1262.Device.
type Radio struct {
	mu sync.Mutex

	txHistory   [][]byte
	nextTxErr   error
	rxQueue     []protocol.Response
	nextRxErr   error
	configured  protocol.RadioConfig
	standbyCall int
}

// New returns an empty mock radio.
func New() *Radio {
	return &Radio{}
}

// Configure records the config it was given; it never fails.
func (r *Radio) Configure(cfg protocol.RadioConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configured = cfg
	return nil
}

// SetStandby records that standby was requested.
func (r *Radio) SetStandby() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.standbyCall++
	return nil
}

// Transmit records data in the transmit history and returns the queued
// error, if any, set by SetNextTxError.
func (r *Radio) Transmit(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	r.txHistory = append(r.txHistory, cp)
	if r.nextTxErr != nil {
		err := r.nextTxErr
		r.nextTxErr = nil
		return err
	}
	return nil
}

// Receive pops the next queued response, or returns the queued error set
// by SetNextRxError. timeout is accepted for interface compatibility but
// unused — the mock never actually blocks.
func (r *Radio) Receive(timeout time.Duration) (protocol.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextRxErr != nil {
		err := r.nextRxErr
		r.nextRxErr = nil
		return protocol.Response{}, err
	}
	if len(r.rxQueue) == 0 {
		return protocol.Response{}, sx1262.ErrTimeout
	}
	next := r.rxQueue[0]
	r.rxQueue = r.rxQueue[1:]
	return next, nil
}

// QueueRxPacket arms the mock to yield r on the next Receive call.
func (r *Radio) QueueRxPacket(resp protocol.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rxQueue = append(r.rxQueue, resp)
}

// SetNextTxError arms the mock to fail the next Transmit call with err.
func (r *Radio) SetNextTxError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTxErr = err
}

// SetNextRxError arms the mock to fail the next Receive call with err.
func (r *Radio) SetNextRxError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRxErr = err
}

// TxHistory returns every payload passed to Transmit, in order.
func (r *Radio) TxHistory() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.txHistory))
	copy(out, r.txHistory)
	return out
}

// HasPendingRx reports whether a queued packet remains unreceived.
func (r *Radio) HasPendingRx() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rxQueue) > 0
}
