// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"fmt"

	"github.com/canonical/go-tpm1/mu"
)

// runCommand executes a fixed-template command on the chip: it builds a blob
// from the ordinal and payload arguments in a buffer of at least capacity
// bytes, transmits it, verifies the response header and result code, and
// returns the response payload (the bytes following the header).
func (c *Chip) runCommand(ordinal Ordinal, capacity int, args ...interface{}) ([]byte, error) {
	blob, err := marshalCommand(ordinal, capacity, args...)
	if err != nil {
		return nil, err
	}

	n, err := c.Transmit(blob)
	if err != nil {
		return nil, err
	}
	if n < HeaderSize {
		return nil, &InvalidResponseError{Ordinal: ordinal, msg: "response shorter than a response header"}
	}

	var hdr ResponseHeader
	if _, err := mu.UnmarshalFromBytes(blob[:n], &hdr); err != nil {
		return nil, &InvalidResponseError{Ordinal: ordinal, msg: err.Error()}
	}
	if hdr.Tag != TagRSPCommand {
		return nil, &InvalidResponseError{Ordinal: ordinal, msg: fmt.Sprintf("unexpected tag 0x%04x", uint16(hdr.Tag))}
	}
	if hdr.Result != Success {
		return nil, &TPMError{Ordinal: ordinal, Code: hdr.Result}
	}
	if int64(hdr.Size) > int64(n) {
		return nil, &InvalidResponseError{Ordinal: ordinal, msg: "response header declares more bytes than were received"}
	}

	return blob[HeaderSize:n], nil
}
