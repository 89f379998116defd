// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"github.com/canonical/go-tpm1/mu"
)

const (
	readPCRResultSize = HeaderSize + DigestSize
	extendCommandSize = HeaderSize + 4 + DigestSize
)

// ReadPCR executes TPM_ORD_PcrRead against this chip and returns the current
// contents of the PCR with the supplied index.
func (c *Chip) ReadPCR(index int) (Digest, error) {
	rsp, err := c.runCommand(OrdinalPCRRead, readPCRResultSize, uint32(index))
	if err != nil {
		return Digest{}, err
	}

	var digest Digest
	if _, err := mu.UnmarshalFromBytes(rsp, &digest); err != nil {
		return Digest{}, &InvalidResponseError{Ordinal: OrdinalPCRRead, msg: err.Error()}
	}
	return digest, nil
}

// ExtendPCR executes TPM_ORD_Extend against this chip, folding the supplied
// digest into the PCR with the supplied index, and returns the PCR's new
// contents.
func (c *Chip) ExtendPCR(index int, digest Digest) (Digest, error) {
	rsp, err := c.runCommand(OrdinalExtend, extendCommandSize, uint32(index), digest)
	if err != nil {
		return Digest{}, err
	}

	var out Digest
	if _, err := mu.UnmarshalFromBytes(rsp, &out); err != nil {
		return Digest{}, &InvalidResponseError{Ordinal: OrdinalExtend, msg: err.Error()}
	}
	return out, nil
}

// NumPCRs returns the number of PCRs implemented by this chip, via a
// TPM_CAP_PROP_PCR capability query.
func (c *Chip) NumPCRs() (int, error) {
	n, err := c.capabilityProperty(PropertyPCRCount)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ReadPCR is the direct-call interface for other in-process subsystems: it
// looks up the chip holding the supplied device number (AnyChip selects the
// first available chip) and reads the PCR with the supplied index.
func (r *Registry) ReadPCR(devNum, index int) (Digest, error) {
	chip, err := r.Lookup(devNum)
	if err != nil {
		return Digest{}, err
	}
	return chip.ReadPCR(index)
}

// ExtendPCR is the direct-call interface for other in-process subsystems: it
// looks up the chip holding the supplied device number (AnyChip selects the
// first available chip) and extends the PCR with the supplied index.
func (r *Registry) ExtendPCR(devNum, index int, digest Digest) (Digest, error) {
	chip, err := r.Lookup(devNum)
	if err != nil {
		return Digest{}, err
	}
	return chip.ExtendPCR(index, digest)
}
