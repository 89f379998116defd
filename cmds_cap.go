// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"github.com/canonical/go-tpm1/mu"
)

// getCapability executes TPM_ORD_GetCapability for the supplied capability
// area and optional sub-capability selector, returning the raw capability
// payload.
func (c *Chip) getCapability(capability Capability, subCap ...uint32) ([]byte, error) {
	var args []interface{}
	args = append(args, uint32(capability), uint32(4*len(subCap)))
	for _, s := range subCap {
		args = append(args, s)
	}

	// The response carries a 4 byte payload size followed by the payload
	// itself. Size the buffer for the largest capability payload in the
	// catalog (the 4 byte version response).
	capacity := HeaderSize + 4 + len(subCap)*4 + 8

	rsp, err := c.runCommand(OrdinalGetCapability, capacity, args...)
	if err != nil {
		return nil, err
	}

	var size uint32
	if _, err := mu.UnmarshalFromBytes(rsp, &size); err != nil {
		return nil, &InvalidResponseError{Ordinal: OrdinalGetCapability, msg: err.Error()}
	}
	if int64(size) > int64(len(rsp)-4) {
		return nil, &InvalidResponseError{Ordinal: OrdinalGetCapability, msg: "capability payload size exceeds the response"}
	}
	return rsp[4 : 4+size], nil
}

// capabilityProperty queries a single 32-bit property from the
// TPM_CAP_PROPERTY area.
func (c *Chip) capabilityProperty(property Property) (uint32, error) {
	payload, err := c.getCapability(CapabilityProperty, uint32(property))
	if err != nil {
		return 0, err
	}

	var value uint32
	if _, err := mu.UnmarshalFromBytes(payload, &value); err != nil {
		return 0, &InvalidResponseError{Ordinal: OrdinalGetCapability, msg: err.Error()}
	}
	return value, nil
}

// Manufacturer returns the chip's manufacturer code, via a
// TPM_CAP_PROP_MANUFACTURER capability query.
func (c *Chip) Manufacturer() (uint32, error) {
	return c.capabilityProperty(PropertyManufacturer)
}

// Version returns the TCG specification version and firmware version
// reported by the chip, via a TPM_CAP_VERSION capability query.
func (c *Chip) Version() (Version, error) {
	payload, err := c.getCapability(CapabilityVersion)
	if err != nil {
		return Version{}, err
	}

	var version Version
	if _, err := mu.UnmarshalFromBytes(payload, &version); err != nil {
		return Version{}, &InvalidResponseError{Ordinal: OrdinalGetCapability, msg: err.Error()}
	}
	return version, nil
}
