// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package testutil

import (
	"sync"

	"github.com/canonical/go-tpm1"
)

const (
	statusIdle     uint8 = 0x00
	statusReady    uint8 = 0x01
	statusCanceled uint8 = 0xff
)

// Responder computes the response blob for a command blob submitted to a
// FakeBackend.
type Responder func(cmd []byte) []byte

// FixedResponder returns a Responder that responds to every command with the
// same blob.
func FixedResponder(rsp []byte) Responder {
	return func([]byte) []byte {
		out := make([]byte, len(rsp))
		copy(out, rsp)
		return out
	}
}

// FakeBackend is a scriptable in-memory implementation of tpm1.Backend that
// records every hardware interaction. The zero behaviour is to run each sent
// command through its Responder and report completion on the next status
// poll.
type FakeBackend struct {
	mu sync.Mutex

	responder Responder
	status    uint8
	rsp       []byte

	sendErr      error
	recvErr      error
	holdBusy     bool
	cancelOnSend bool

	sent        [][]byte
	cancelCount int
	closed      bool
}

// NewFakeBackend returns a FakeBackend that computes responses with the
// supplied responder.
func NewFakeBackend(responder Responder) *FakeBackend {
	return &FakeBackend{responder: responder}
}

// SetSendError arranges for the next Send to fail with the supplied error.
func (b *FakeBackend) SetSendError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendErr = err
}

// SetRecvError arranges for the next Recv to fail with the supplied error.
func (b *FakeBackend) SetRecvError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recvErr = err
}

// HoldBusy arranges for the status byte to never report completion, as a
// wedged device would.
func (b *FakeBackend) HoldBusy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.holdBusy = true
}

// CancelOnSend arranges for the device to report the canceled sentinel
// status for every command instead of completing it.
func (b *FakeBackend) CancelOnSend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelOnSend = true
}

// SentCommands returns a copy of every command blob accepted by Send, in
// order.
func (b *FakeBackend) SentCommands() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.sent))
	copy(out, b.sent)
	return out
}

// CancelCount returns the number of times Cancel has been invoked.
func (b *FakeBackend) CancelCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelCount
}

// Closed reports whether the backend's resources have been released via
// Close.
func (b *FakeBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Send implements tpm1.Backend.
func (b *FakeBackend) Send(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sendErr != nil {
		err := b.sendErr
		b.sendErr = nil
		return 0, err
	}

	cmd := make([]byte, len(data))
	copy(cmd, data)
	b.sent = append(b.sent, cmd)

	switch {
	case b.cancelOnSend:
		b.status = statusCanceled
	case b.holdBusy:
		b.status = statusIdle
	default:
		b.rsp = b.responder(cmd)
		b.status = statusReady
	}
	return len(data), nil
}

// Status implements tpm1.Backend.
func (b *FakeBackend) Status() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Recv implements tpm1.Backend.
func (b *FakeBackend) Recv(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recvErr != nil {
		err := b.recvErr
		b.recvErr = nil
		return 0, err
	}

	n := copy(buf, b.rsp)
	b.rsp = nil
	b.status = statusIdle
	return n, nil
}

// Cancel implements tpm1.Backend.
func (b *FakeBackend) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelCount++
}

// StatusProperties implements tpm1.Backend.
func (b *FakeBackend) StatusProperties() tpm1.StatusProperties {
	return tpm1.StatusProperties{
		CompleteMask:  statusReady,
		CompleteValue: statusReady,
		CanceledValue: statusCanceled}
}

// Close implements io.Closer so that Registry.Unregister releases the
// backend.
func (b *FakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
