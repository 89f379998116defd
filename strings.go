// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"bytes"
	"fmt"
)

// PCRReport returns a multi-line report of every PCR on the chip, one
// "PCR-NN: ..." line per register, in the format historically exposed by the
// driver's pcrs attribute file.
func (c *Chip) PCRReport() (string, error) {
	numPCRs, err := c.NumPCRs()
	if err != nil {
		return "", err
	}

	str := new(bytes.Buffer)
	for i := 0; i < numPCRs; i++ {
		digest, err := c.ReadPCR(i)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(str, "PCR-%02d:", i)
		for _, b := range digest {
			fmt.Fprintf(str, " %02X", b)
		}
		fmt.Fprintf(str, "\n")
	}
	return str.String(), nil
}

// CapsReport returns a report of the chip's manufacturer and version, in the
// format historically exposed by the driver's caps attribute file.
func (c *Chip) CapsReport() (string, error) {
	manufacturer, err := c.Manufacturer()
	if err != nil {
		return "", err
	}
	version, err := c.Version()
	if err != nil {
		return "", err
	}

	str := new(bytes.Buffer)
	fmt.Fprintf(str, "Manufacturer: 0x%x\n", manufacturer)
	fmt.Fprintf(str, "TCG version: %d.%d\n", version.Major, version.Minor)
	fmt.Fprintf(str, "Firmware version: %d.%d\n", version.RevMajor, version.RevMinor)
	return str.String(), nil
}
