// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/canonical/go-tpm1/mu"
)

var (
	// commandDeadline is the time budget for a single command. Real
	// hardware operations such as key generation can legitimately take
	// this long, so it must not be tightened.
	commandDeadline = 2 * time.Minute

	// pollInterval is how long the transmit engine sleeps between status
	// polls. The device has no completion interrupt.
	pollInterval = 5 * time.Millisecond

	// responseClaimTimeout is how long a session holds an unclaimed
	// response before discarding it.
	responseClaimTimeout = 60 * time.Second
)

// Chip represents one registered TPM device instance.
type Chip struct {
	name    string
	devNum  int
	dev     interface{}
	backend Backend
	props   StatusProperties

	registry *Registry

	// transmitMu serializes commands on this chip. The device itself can
	// only execute one command at a time.
	transmitMu sync.Mutex

	// sessionMu guards every field below, which together make up the
	// state of the (at most one) open session. The expiry timer callback
	// takes it too. Lock order: sessionMu before transmitMu, via
	// Session.Write calling Transmit. Never the reverse.
	sessionMu   sync.Mutex
	drained     *sync.Cond // signalled when pending drops to zero
	opened      bool
	buf         []byte
	pending     int
	position    int
	expiryTimer *time.Timer
	expiryGen   uint64
}

func newChip(name string, devNum int, dev interface{}, backend Backend, registry *Registry) *Chip {
	c := &Chip{
		name:     name,
		devNum:   devNum,
		dev:      dev,
		backend:  backend,
		props:    backend.StatusProperties(),
		registry: registry}
	c.drained = sync.NewCond(&c.sessionMu)
	return c
}

// Name returns the chip's external name ("tpm0", "tpm1", ...). The chip with
// device number 0 carries the well-known primary name "tpm0".
func (c *Chip) Name() string {
	return c.name
}

// DeviceNumber returns the stable identity allocated to this chip by
// Registry.Register.
func (c *Chip) DeviceNumber() int {
	return c.devNum
}

// PlatformDevice returns the opaque platform device object that was supplied
// to Registry.Register. The caller owns its lifecycle.
func (c *Chip) PlatformDevice() interface{} {
	return c.dev
}

// CancelCommand forwards a best-effort abort request for the command in
// flight to the backend.
func (c *Chip) CancelCommand() {
	c.backend.Cancel()
}

// Transmit executes one command/response cycle on this chip. The supplied
// buffer contains the command blob and receives the response in place - its
// capacity bounds both. The length field of the command header must be
// nonzero and must not exceed len(buf); violations are rejected with
// ErrNoCommandData and *CommandTooLargeError respectively, without touching
// the hardware.
//
// Transmit blocks until any command already in flight on this chip
// completes. Completion of its own command is detected by polling the
// backend status byte. If the device reports cancellation, Transmit returns
// ErrRequestCanceled. If the command does not complete within two minutes, a
// best-effort cancel is delivered to the backend and Transmit returns
// ErrRequestTimedOut.
//
// On success it returns the number of response bytes received, which is
// never zero.
func (c *Chip) Transmit(buf []byte) (int, error) {
	var hdr CommandHeader
	if _, err := mu.UnmarshalFromBytes(buf, &hdr); err != nil {
		return 0, xerrors.Errorf("cannot decode command header: %w", err)
	}

	if hdr.Size == 0 {
		return 0, ErrNoCommandData
	}
	if int64(hdr.Size) > int64(len(buf)) {
		return 0, &CommandTooLargeError{Size: hdr.Size, Capacity: len(buf)}
	}

	c.transmitMu.Lock()
	defer c.transmitMu.Unlock()

	if _, err := c.backend.Send(buf[:hdr.Size]); err != nil {
		return 0, &BackendError{Op: "send", err: err}
	}

	stop := time.Now().Add(commandDeadline)
	for {
		// The canceled sentinel can also satisfy the completion mask, so
		// it has to be checked first.
		status := c.backend.Status()
		if c.props.Canceled(status) {
			return 0, ErrRequestCanceled
		}
		if c.props.Complete(status) {
			break
		}
		if !time.Now().Before(stop) {
			c.backend.Cancel()
			return 0, ErrRequestTimedOut
		}
		time.Sleep(pollInterval)
	}

	n, err := c.backend.Recv(buf)
	if err != nil {
		return 0, &BackendError{Op: "recv", err: err}
	}
	if n == 0 {
		return 0, ErrNoResponseData
	}
	return n, nil
}
