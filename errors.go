// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCommandData is returned from Chip.Transmit if the length field
	// of the supplied command blob is zero.
	ErrNoCommandData = errors.New("command blob declares a zero length")

	// ErrRequestCanceled is returned from Chip.Transmit if the device
	// reports that the command in flight was canceled.
	ErrRequestCanceled = errors.New("command was canceled by the device")

	// ErrRequestTimedOut is returned from Chip.Transmit if the device does
	// not complete a command within the command deadline. A best-effort
	// cancel has been delivered to the backend when this is returned.
	ErrRequestTimedOut = errors.New("command timed out")

	// ErrNoResponseData is returned from Chip.Transmit if the backend
	// completes a command without producing any response bytes.
	ErrNoResponseData = errors.New("backend returned an empty response")

	// ErrChipNotFound is returned from Registry.Lookup and
	// Registry.OpenSession if no registered chip matches the requested
	// device number.
	ErrChipNotFound = errors.New("no TPM chip with the requested device number")

	// ErrChipInUse is returned from Registry.OpenSession if another
	// session currently owns the chip.
	ErrChipInUse = errors.New("another session owns this TPM chip")

	// ErrNoDeviceNumbers is returned from Registry.Register if every
	// device number in the pool is held by a live chip.
	ErrNoDeviceNumbers = errors.New("no available TPM device numbers")

	// ErrSessionClosed is returned from Session methods after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// CommandTooLargeError is returned from Chip.Transmit if the length field of
// the supplied command blob exceeds the capacity of the supplied buffer.
type CommandTooLargeError struct {
	Size     uint32 // the length declared by the command header
	Capacity int    // the capacity supplied by the caller
}

func (e *CommandTooLargeError) Error() string {
	return fmt.Sprintf("command blob declares %d bytes but the buffer capacity is only %d bytes", e.Size, e.Capacity)
}

// BackendError is returned from any function that executes a command on a
// chip if the backend fails. It wraps the error returned by the backend
// operation unchanged.
type BackendError struct {
	Op  string // the backend operation that failed ("send" or "recv")
	err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cannot complete %s operation on backend: %v", e.Op, e.err)
}

func (e *BackendError) Unwrap() error {
	return e.err
}

// InvalidResponseError is returned from any catalog function if the chip's
// response is malformed - too short for a response header, shorter than the
// operation's fixed result layout, or carrying an unexpected tag.
type InvalidResponseError struct {
	Ordinal Ordinal
	msg     string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("TPM returned an invalid response for ordinal %d: %s", e.Ordinal, e.msg)
}

// TPMError is returned from any catalog function if the chip completes the
// command with a result code other than Success.
type TPMError struct {
	Ordinal Ordinal    // the ordinal of the command that failed
	Code    ResultCode // the result code reported by the chip
}

func (e *TPMError) Error() string {
	return fmt.Sprintf("TPM returned error code 0x%08x for ordinal %d", e.Code, e.Ordinal)
}
