// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"bytes"
	"fmt"

	"github.com/canonical/go-tpm1/mu"
)

const readPubekResultSize = 314

// PublicKey is the public part of the endorsement key, as returned by
// TPM_ORD_ReadPubek.
type PublicKey struct {
	Algorithm uint32 // key algorithm (1 = RSA)
	EncScheme uint16 // encryption scheme
	SigScheme uint16 // signature scheme
	Parms     []byte // algorithm parameters (for RSA: key bits, number of primes, exponent size)
	Modulus   []byte // public modulus
	Checksum  Digest // digest of the response, bound to the antireplay nonce
}

// ReadPubEK executes TPM_ORD_ReadPubek against this chip and returns the
// public part of its endorsement key. A zero antireplay nonce is used, so the
// checksum is not verified here.
func (c *Chip) ReadPubEK() (*PublicKey, error) {
	var nonce Digest
	rsp, err := c.runCommand(OrdinalReadPubek, readPubekResultSize, nonce)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(rsp)
	pub := new(PublicKey)

	var parmSize uint32
	if _, err := mu.UnmarshalFromReader(r, &pub.Algorithm, &pub.EncScheme, &pub.SigScheme, &parmSize); err != nil {
		return nil, &InvalidResponseError{Ordinal: OrdinalReadPubek, msg: err.Error()}
	}
	if int64(parmSize) > int64(r.Len()) {
		return nil, &InvalidResponseError{Ordinal: OrdinalReadPubek, msg: "algorithm parameter size exceeds the response"}
	}
	pub.Parms = make([]byte, parmSize)

	var keyLen uint32
	if _, err := mu.UnmarshalFromReader(r, mu.RawBytes(pub.Parms), &keyLen); err != nil {
		return nil, &InvalidResponseError{Ordinal: OrdinalReadPubek, msg: err.Error()}
	}
	if int64(keyLen) > int64(r.Len()) {
		return nil, &InvalidResponseError{Ordinal: OrdinalReadPubek, msg: "key length exceeds the response"}
	}
	pub.Modulus = make([]byte, keyLen)

	if _, err := mu.UnmarshalFromReader(r, mu.RawBytes(pub.Modulus), &pub.Checksum); err != nil {
		return nil, &InvalidResponseError{Ordinal: OrdinalReadPubek, msg: err.Error()}
	}

	return pub, nil
}

// String returns a multi-line report of the public key in the format
// historically exposed by the driver's pubek attribute file.
func (pub *PublicKey) String() string {
	str := new(bytes.Buffer)

	fmt.Fprintf(str, "Algorithm: %08X\n", pub.Algorithm)
	fmt.Fprintf(str, "Encscheme: %04X\n", pub.EncScheme)
	fmt.Fprintf(str, "Sigscheme: %04X\n", pub.SigScheme)
	fmt.Fprintf(str, "Parameters:")
	for _, b := range pub.Parms {
		fmt.Fprintf(str, " %02X", b)
	}
	fmt.Fprintf(str, "\nModulus length: %d\nModulus:\n", len(pub.Modulus))
	for i, b := range pub.Modulus {
		fmt.Fprintf(str, "%02X ", b)
		if (i+1)%16 == 0 {
			fmt.Fprintf(str, "\n")
		}
	}

	return str.String()
}
