// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

// StatusProperties describes how to interpret the status byte returned by a
// backend's Status operation.
type StatusProperties struct {
	// CompleteMask selects the bits of the status byte that indicate
	// command completion.
	CompleteMask uint8

	// CompleteValue is the value that the bits selected by CompleteMask
	// take once a response is ready to be received.
	CompleteValue uint8

	// CanceledValue is the sentinel status byte reported by hardware that
	// has canceled the command in flight.
	CanceledValue uint8
}

// Complete reports whether the supplied status byte indicates that a
// response is ready to be received.
func (p StatusProperties) Complete(status uint8) bool {
	return status&p.CompleteMask == p.CompleteValue
}

// Canceled reports whether the supplied status byte indicates that the
// device canceled the command in flight.
func (p StatusProperties) Canceled(status uint8) bool {
	return status == p.CanceledValue
}

// Backend is the contract implemented by a hardware variant. The transmit
// engine is the only caller of Send, Status, Recv and Cancel, and serializes
// them per chip, so implementations do not need to be safe for concurrent
// use by multiple commands.
//
// No operation may block indefinitely. Status in particular must return
// promptly and be cheap to call repeatedly - the engine polls it in a loop
// and relies on it to remain responsive to the command deadline.
type Backend interface {
	// Send begins execution of the supplied command blob and returns the
	// number of bytes accepted. The device is expected to remain busy
	// until Status reports completion.
	Send(data []byte) (int, error)

	// Status returns the device's current status byte, interpreted
	// according to StatusProperties.
	Status() uint8

	// Recv drains a completed response into buf and returns its size.
	// It is only called once Status has reported completion.
	Recv(buf []byte) (int, error)

	// Cancel delivers a best-effort request to abort the command in
	// flight.
	Cancel()

	// StatusProperties describes how to interpret the byte returned by
	// Status.
	StatusProperties() StatusProperties
}
