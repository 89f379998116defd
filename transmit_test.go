// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1_test

import (
	"errors"
	"time"

	. "gopkg.in/check.v1"

	. "github.com/canonical/go-tpm1"
	"github.com/canonical/go-tpm1/mu"
	"github.com/canonical/go-tpm1/testutil"
)

type transmitSuite struct {
	testutil.ChipTest
}

var _ = Suite(&transmitSuite{})

func (s *transmitSuite) capCommand() []byte {
	return mu.MustMarshalToBytes(
		CommandHeader{Tag: TagRQUCommand, Size: 22, Ordinal: OrdinalGetCapability},
		uint32(CapabilityProperty), uint32(4), uint32(PropertyManufacturer))
}

func (s *transmitSuite) TestTransmitRoundTrip(c *C) {
	blob := s.capCommand()
	expected := s.TPM.RunCommand(blob)

	buf := make([]byte, 64)
	copy(buf, blob)

	n, err := s.Chip.Transmit(buf)
	c.Assert(err, IsNil)
	c.Check(n > 0, Equals, true)
	c.Check(buf[:n], DeepEquals, expected)

	sent := s.Backend.SentCommands()
	c.Assert(sent, HasLen, 1)
	c.Check(sent[0], DeepEquals, blob)
}

func (s *transmitSuite) TestTransmitSendsDeclaredLengthOnly(c *C) {
	blob := s.capCommand()

	// Pad the buffer well beyond the declared command length.
	buf := make([]byte, 256)
	copy(buf, blob)

	_, err := s.Chip.Transmit(buf)
	c.Assert(err, IsNil)

	sent := s.Backend.SentCommands()
	c.Assert(sent, HasLen, 1)
	c.Check(sent[0], HasLen, len(blob))
}

func (s *transmitSuite) TestTransmitZeroLength(c *C) {
	buf := mu.MustMarshalToBytes(CommandHeader{Tag: TagRQUCommand, Size: 0, Ordinal: OrdinalSaveState})

	_, err := s.Chip.Transmit(buf)
	c.Check(err, Equals, ErrNoCommandData)
	c.Check(s.Backend.SentCommands(), HasLen, 0)
}

func (s *transmitSuite) TestTransmitTooLarge(c *C) {
	buf := mu.MustMarshalToBytes(CommandHeader{Tag: TagRQUCommand, Size: 4096, Ordinal: OrdinalSaveState})

	_, err := s.Chip.Transmit(buf)
	var tooLarge *CommandTooLargeError
	c.Assert(errors.As(err, &tooLarge), Equals, true)
	c.Check(tooLarge.Size, Equals, uint32(4096))
	c.Check(tooLarge.Capacity, Equals, len(buf))
	c.Check(s.Backend.SentCommands(), HasLen, 0)
}

func (s *transmitSuite) TestTransmitShortBuffer(c *C) {
	_, err := s.Chip.Transmit([]byte{0x00, 0xc1})
	c.Check(err, ErrorMatches, "cannot decode command header: .*")
	c.Check(s.Backend.SentCommands(), HasLen, 0)
}

func (s *transmitSuite) TestTransmitSendError(c *C) {
	sendErr := errors.New("bus fault")
	s.Backend.SetSendError(sendErr)

	_, err := s.Chip.Transmit(s.capCommand())
	var backendErr *BackendError
	c.Assert(errors.As(err, &backendErr), Equals, true)
	c.Check(backendErr.Op, Equals, "send")
	c.Check(errors.Is(err, sendErr), Equals, true)
}

func (s *transmitSuite) TestTransmitRecvError(c *C) {
	recvErr := errors.New("fifo underrun")
	s.Backend.SetRecvError(recvErr)

	_, err := s.Chip.Transmit(s.capCommand())
	var backendErr *BackendError
	c.Assert(errors.As(err, &backendErr), Equals, true)
	c.Check(backendErr.Op, Equals, "recv")
	c.Check(errors.Is(err, recvErr), Equals, true)
}

func (s *transmitSuite) TestTransmitEmptyResponse(c *C) {
	backend := testutil.NewFakeBackend(func([]byte) []byte { return nil })
	chip, err := s.Registry.Register(nil, backend)
	c.Assert(err, IsNil)
	s.AddCleanup(func() { s.Registry.Unregister(chip) })

	_, err = chip.Transmit(s.capCommand())
	c.Check(err, Equals, ErrNoResponseData)
}

func (s *transmitSuite) TestTransmitCanceled(c *C) {
	s.Backend.CancelOnSend()

	_, err := s.Chip.Transmit(s.capCommand())
	c.Check(err, Equals, ErrRequestCanceled)
}

func (s *transmitSuite) TestTransmitTimeout(c *C) {
	s.AddCleanup(MockCommandDeadline(50 * time.Millisecond))
	s.AddCleanup(MockPollInterval(time.Millisecond))
	s.Backend.HoldBusy()

	start := time.Now()
	_, err := s.Chip.Transmit(s.capCommand())
	c.Check(err, Equals, ErrRequestTimedOut)
	c.Check(time.Since(start) >= 50*time.Millisecond, Equals, true)
	c.Check(s.Backend.CancelCount(), Equals, 1)
}

func (s *transmitSuite) TestTransmitSerialized(c *C) {
	// Two concurrent transmits on the same chip must both complete and
	// each observe its own response.
	blob := s.capCommand()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			buf := make([]byte, 64)
			copy(buf, blob)
			_, err := s.Chip.Transmit(buf)
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		c.Check(<-done, IsNil)
	}
	c.Check(s.Backend.SentCommands(), HasLen, 2)
}
