// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1_test

import (
	"time"

	. "gopkg.in/check.v1"

	. "github.com/canonical/go-tpm1"
	"github.com/canonical/go-tpm1/mu"
	"github.com/canonical/go-tpm1/testutil"
)

type sessionSuite struct {
	testutil.ChipTest
}

var _ = Suite(&sessionSuite{})

func (s *sessionSuite) capCommand() []byte {
	return mu.MustMarshalToBytes(
		CommandHeader{Tag: TagRQUCommand, Size: 22, Ordinal: OrdinalGetCapability},
		uint32(CapabilityProperty), uint32(4), uint32(PropertyManufacturer))
}

func (s *sessionSuite) TestOpenUnknownChip(c *C) {
	_, err := s.Registry.OpenSession(42)
	c.Check(err, Equals, ErrChipNotFound)
}

func (s *sessionSuite) TestOpenExclusive(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)

	_, err = s.Registry.OpenSession(0)
	c.Check(err, Equals, ErrChipInUse)

	c.Assert(session.Close(), IsNil)

	session, err = s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	c.Check(session.Close(), IsNil)
}

func (s *sessionSuite) TestWriteReadRoundTrip(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()
	expected := s.TPM.RunCommand(cmd)

	n, err := session.Write(cmd)
	c.Assert(err, IsNil)
	c.Check(n, Equals, len(cmd))

	rsp := make([]byte, len(expected))
	n, err = session.Read(rsp)
	c.Assert(err, IsNil)
	c.Check(n, Equals, len(expected))
	c.Check(rsp, DeepEquals, expected)

	// The response is fully drained.
	n, err = session.Read(rsp)
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)
}

func (s *sessionSuite) TestReadDrainsIncrementally(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()
	expected := s.TPM.RunCommand(cmd)

	_, err = session.Write(cmd)
	c.Assert(err, IsNil)

	var got []byte
	chunk := make([]byte, 7)
	for {
		n, err := session.Read(chunk)
		c.Assert(err, IsNil)
		if n == 0 {
			break
		}
		got = append(got, chunk[:n]...)
	}
	c.Check(got, DeepEquals, expected)
}

func (s *sessionSuite) TestReadWithNothingPending(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	n, err := session.Read(make([]byte, 16))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)
}

func (s *sessionSuite) TestWriteTruncatesSilently(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()
	oversized := make([]byte, BufferSize+512)
	copy(oversized, cmd)

	n, err := session.Write(oversized)
	c.Assert(err, IsNil)
	c.Check(n, Equals, BufferSize)
}

func (s *sessionSuite) TestResponseExpires(c *C) {
	s.AddCleanup(MockResponseClaimTimeout(50 * time.Millisecond))

	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	_, err = session.Write(s.capCommand())
	c.Assert(err, IsNil)

	time.Sleep(150 * time.Millisecond)

	n, err := session.Read(make([]byte, 64))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)
}

func (s *sessionSuite) TestReadClaimsResponse(c *C) {
	s.AddCleanup(MockResponseClaimTimeout(50 * time.Millisecond))

	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()
	expected := s.TPM.RunCommand(cmd)

	_, err = session.Write(cmd)
	c.Assert(err, IsNil)

	// Claim the response with a partial read, then wait out the expiry
	// timeout. The remainder must still be available: reads stop the
	// timer and only the next write re-arms it.
	chunk := make([]byte, 4)
	n, err := session.Read(chunk)
	c.Assert(err, IsNil)
	c.Check(n, Equals, 4)

	time.Sleep(150 * time.Millisecond)

	rest := make([]byte, len(expected))
	n, err = session.Read(rest)
	c.Assert(err, IsNil)
	c.Check(n, Equals, len(expected)-4)
	c.Check(append(chunk, rest[:n]...), DeepEquals, expected)
}

func (s *sessionSuite) TestWriteBlocksWhilePending(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()
	expected := s.TPM.RunCommand(cmd)

	_, err = session.Write(cmd)
	c.Assert(err, IsNil)

	done := make(chan error, 1)
	go func() {
		_, err := session.Write(cmd)
		done <- err
	}()

	// The second write must block while the first response is pending.
	select {
	case <-done:
		c.Fatal("write completed with a response still pending")
	case <-time.After(50 * time.Millisecond):
	}

	// Drain the response to unblock the writer.
	buf := make([]byte, len(expected))
	_, err = session.Read(buf)
	c.Assert(err, IsNil)

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("write did not complete after the response was drained")
	}

	// Drain the second response too.
	n, err := session.Read(buf)
	c.Assert(err, IsNil)
	c.Check(n, Equals, len(expected))
}

func (s *sessionSuite) TestExpiryUnblocksWriter(c *C) {
	s.AddCleanup(MockResponseClaimTimeout(50 * time.Millisecond))

	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	cmd := s.capCommand()

	_, err = session.Write(cmd)
	c.Assert(err, IsNil)

	// With no reader, the second write proceeds once the first response
	// expires.
	done := make(chan error, 1)
	go func() {
		_, err := session.Write(cmd)
		done <- err
	}()

	select {
	case err := <-done:
		c.Check(err, IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("write did not complete after the pending response expired")
	}
}

func (s *sessionSuite) TestCloseDiscardsPending(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)

	_, err = session.Write(s.capCommand())
	c.Assert(err, IsNil)
	c.Assert(session.Close(), IsNil)

	c.Check(session.Close(), Equals, ErrSessionClosed)

	// A fresh session starts with no pending response.
	session, err = s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	defer session.Close()

	n, err := session.Read(make([]byte, 64))
	c.Assert(err, IsNil)
	c.Check(n, Equals, 0)
}

func (s *sessionSuite) TestUseAfterClose(c *C) {
	session, err := s.Registry.OpenSession(0)
	c.Assert(err, IsNil)
	c.Assert(session.Close(), IsNil)

	_, err = session.Write(s.capCommand())
	c.Check(err, Equals, ErrSessionClosed)

	_, err = session.Read(make([]byte, 16))
	c.Check(err, Equals, ErrSessionClosed)
}
