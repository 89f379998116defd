// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package testutil

import (
	"crypto/sha1"
	"sync"

	"github.com/canonical/go-tpm1"
	"github.com/canonical/go-tpm1/mu"
)

const (
	// NumPCRs is the number of PCRs implemented by SoftwareTPM.
	NumPCRs = 16

	// Manufacturer is the manufacturer code reported by SoftwareTPM.
	Manufacturer uint32 = 0x49424d00

	resultBadIndex   tpm1.ResultCode = 2
	resultBadMode    tpm1.ResultCode = 44
	resultBadOrdinal tpm1.ResultCode = 10
)

// Version is the version reported by SoftwareTPM.
var Version = tpm1.Version{Major: 1, Minor: 2, RevMajor: 3, RevMinor: 16}

// SoftwareTPM implements enough of the TPM 1.2 command set to exercise the
// catalog: PCR read/extend, the capability queries, ReadPubek and SaveState.
// Use its RunCommand method as the Responder of a FakeBackend.
type SoftwareTPM struct {
	mu             sync.Mutex
	pcrs           [NumPCRs]tpm1.Digest
	modulus        [256]byte
	saveStateCount int
}

// NewSoftwareTPM returns a SoftwareTPM with zero PCRs and a fixed pattern
// endorsement key modulus.
func NewSoftwareTPM() *SoftwareTPM {
	t := new(SoftwareTPM)
	for i := range t.modulus {
		t.modulus[i] = byte(i)
	}
	return t
}

// SetPCR sets the contents of a PCR directly, bypassing extend semantics.
func (t *SoftwareTPM) SetPCR(index int, digest tpm1.Digest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pcrs[index] = digest
}

// PCR returns the current contents of a PCR.
func (t *SoftwareTPM) PCR(index int) tpm1.Digest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pcrs[index]
}

// Modulus returns the endorsement key modulus.
func (t *SoftwareTPM) Modulus() []byte {
	out := make([]byte, len(t.modulus))
	copy(out, t.modulus[:])
	return out
}

// SaveStateCount returns the number of TPM_ORD_SaveState commands executed.
func (t *SoftwareTPM) SaveStateCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveStateCount
}

func response(result tpm1.ResultCode, args ...interface{}) []byte {
	payload := mu.MustMarshalToBytes(args...)
	hdr := tpm1.ResponseHeader{
		Tag:    tpm1.TagRSPCommand,
		Size:   uint32(tpm1.HeaderSize + len(payload)),
		Result: result}
	return mu.MustMarshalToBytes(hdr, mu.RawBytes(payload))
}

// RunCommand executes one command blob and returns the response blob. It is
// a Responder.
func (t *SoftwareTPM) RunCommand(cmd []byte) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	var hdr tpm1.CommandHeader
	if _, err := mu.UnmarshalFromBytes(cmd, &hdr); err != nil {
		return response(resultBadOrdinal)
	}
	payload := cmd[tpm1.HeaderSize:]

	switch hdr.Ordinal {
	case tpm1.OrdinalPCRRead:
		var index uint32
		if _, err := mu.UnmarshalFromBytes(payload, &index); err != nil {
			return response(resultBadIndex)
		}
		if index >= NumPCRs {
			return response(resultBadIndex)
		}
		return response(tpm1.Success, t.pcrs[index])
	case tpm1.OrdinalExtend:
		var index uint32
		var in tpm1.Digest
		if _, err := mu.UnmarshalFromBytes(payload, &index, &in); err != nil {
			return response(resultBadIndex)
		}
		if index >= NumPCRs {
			return response(resultBadIndex)
		}
		h := sha1.New()
		h.Write(t.pcrs[index][:])
		h.Write(in[:])
		copy(t.pcrs[index][:], h.Sum(nil))
		return response(tpm1.Success, t.pcrs[index])
	case tpm1.OrdinalGetCapability:
		return t.getCapability(payload)
	case tpm1.OrdinalReadPubek:
		var nonce tpm1.Digest
		if _, err := mu.UnmarshalFromBytes(payload, &nonce); err != nil {
			return response(resultBadMode)
		}
		return t.readPubek(nonce)
	case tpm1.OrdinalSaveState:
		t.saveStateCount++
		return response(tpm1.Success)
	default:
		return response(resultBadOrdinal)
	}
}

func (t *SoftwareTPM) getCapability(payload []byte) []byte {
	var area uint32
	var subCapSize uint32
	if _, err := mu.UnmarshalFromBytes(payload, &area, &subCapSize); err != nil {
		return response(resultBadMode)
	}

	switch tpm1.Capability(area) {
	case tpm1.CapabilityProperty:
		var property uint32
		if _, err := mu.UnmarshalFromBytes(payload[8:], &property); err != nil {
			return response(resultBadMode)
		}
		switch tpm1.Property(property) {
		case tpm1.PropertyPCRCount:
			return response(tpm1.Success, uint32(4), uint32(NumPCRs))
		case tpm1.PropertyManufacturer:
			return response(tpm1.Success, uint32(4), Manufacturer)
		default:
			return response(resultBadMode)
		}
	case tpm1.CapabilityVersion:
		return response(tpm1.Success, uint32(4), Version)
	default:
		return response(resultBadMode)
	}
}

func (t *SoftwareTPM) readPubek(nonce tpm1.Digest) []byte {
	parms := mu.MustMarshalToBytes(uint32(2048), uint32(2), uint32(0))

	h := sha1.New()
	h.Write(t.modulus[:])
	h.Write(nonce[:])
	var checksum tpm1.Digest
	copy(checksum[:], h.Sum(nil))

	return response(tpm1.Success,
		uint32(1),  // TPM_ALG_RSA
		uint16(3),  // TPM_ES_RSAESOAEP_SHA1_MGF1
		uint16(1),  // TPM_SS_NONE
		uint32(len(parms)), mu.RawBytes(parms),
		uint32(len(t.modulus)), mu.RawBytes(t.modulus[:]),
		checksum)
}
