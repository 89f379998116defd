// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"fmt"

	"github.com/canonical/go-tpm1/mu"
)

const (
	// BufferSize is the size of the buffer allocated for each session, and
	// is the upper bound on the size of a single command or response blob
	// submitted through the session interface.
	BufferSize = 2048

	// NumDeviceNumbers is the size of the device number pool from which
	// Registry.Register allocates chip identities.
	NumDeviceNumbers = 256

	// AnyChip can be passed to Registry.Lookup and the catalog functions
	// to select the first registered chip, whatever its device number.
	AnyChip = -1

	// DigestSize is the size of a TPM 1.2 digest (SHA-1).
	DigestSize = 20

	// HeaderSize is the size of a marshalled command or response header.
	HeaderSize = 10
)

// Tag corresponds to the TPM_TAG type, found at the start of every command
// and response blob.
type Tag uint16

const (
	TagRQUCommand Tag = 0x00c1 // TPM_TAG_RQU_COMMAND
	TagRSPCommand Tag = 0x00c4 // TPM_TAG_RSP_COMMAND
)

// Ordinal corresponds to the TPM_COMMAND_CODE type, identifying the operation
// requested by a command blob.
type Ordinal uint32

const (
	OrdinalExtend        Ordinal = 0x00000014 // TPM_ORD_Extend
	OrdinalPCRRead       Ordinal = 0x00000015 // TPM_ORD_PcrRead
	OrdinalGetCapability Ordinal = 0x00000065 // TPM_ORD_GetCapability
	OrdinalReadPubek     Ordinal = 0x0000007c // TPM_ORD_ReadPubek
	OrdinalSaveState     Ordinal = 0x00000098 // TPM_ORD_SaveState
)

// ResultCode corresponds to the TPM_RESULT type, returned at offset 6 of
// every response blob.
type ResultCode uint32

// Success corresponds to TPM_SUCCESS.
const Success ResultCode = 0

// Capability corresponds to the TPM_CAPABILITY_AREA type, selecting a class
// of capability for OrdinalGetCapability.
type Capability uint32

const (
	CapabilityProperty Capability = 0x00000005 // TPM_CAP_PROPERTY
	CapabilityVersion  Capability = 0x00000006 // TPM_CAP_VERSION
)

// Property selects a single property within CapabilityProperty.
type Property uint32

const (
	PropertyPCRCount     Property = 0x00000101 // TPM_CAP_PROP_PCR
	PropertyManufacturer Property = 0x00000103 // TPM_CAP_PROP_MANUFACTURER
)

// Digest is the result of a TPM 1.2 hash operation, or the contents of a
// PCR. It is always a SHA-1 digest.
type Digest [DigestSize]byte

// CommandHeader is the 10 byte header at the start of every command blob.
type CommandHeader struct {
	Tag     Tag
	Size    uint32
	Ordinal Ordinal
}

// ResponseHeader is the 10 byte header at the start of every response blob.
type ResponseHeader struct {
	Tag    Tag
	Size   uint32
	Result ResultCode
}

// Version describes the TCG specification and firmware versions reported by
// a chip via CapabilityVersion.
type Version struct {
	Major    uint8
	Minor    uint8
	RevMajor uint8
	RevMinor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d (firmware %d.%d)", v.Major, v.Minor, v.RevMajor, v.RevMinor)
}

// marshalCommand assembles a complete command blob for the supplied ordinal
// and payload values, in a buffer of at least capacity bytes so that the
// response can be received in place.
func marshalCommand(ordinal Ordinal, capacity int, args ...interface{}) ([]byte, error) {
	payload, err := mu.MarshalToBytes(args...)
	if err != nil {
		return nil, err
	}

	hdr := CommandHeader{
		Tag:     TagRQUCommand,
		Size:    uint32(HeaderSize + len(payload)),
		Ordinal: ordinal}
	blob := mu.MustMarshalToBytes(hdr, mu.RawBytes(payload))

	if len(blob) < capacity {
		blob = append(blob, make([]byte, capacity-len(blob))...)
	}
	return blob, nil
}
