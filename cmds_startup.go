// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

// SaveState executes TPM_ORD_SaveState against this chip, instructing it to
// preserve its volatile state across a power transition.
func (c *Chip) SaveState() error {
	_, err := c.runCommand(OrdinalSaveState, HeaderSize)
	return err
}

// Suspend is the platform power management hook invoked before the system
// sleeps. It saves the chip's state with a best-effort SaveState command;
// callers conventionally ignore the returned error.
func (c *Chip) Suspend() error {
	return c.SaveState()
}

// Resume is the platform power management hook invoked after the system
// wakes. The firmware restores the chip's state before this runs, so there
// is nothing to do.
func (c *Chip) Resume() error {
	return nil
}
