// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1_test

import (
	. "gopkg.in/check.v1"

	. "github.com/canonical/go-tpm1"
	"github.com/canonical/go-tpm1/testutil"
)

type registrySuite struct {
	testutil.BaseTest

	registry *Registry
}

var _ = Suite(&registrySuite{})

func (s *registrySuite) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)
	s.registry = NewRegistry()
}

func (s *registrySuite) newBackend() *testutil.FakeBackend {
	return testutil.NewFakeBackend(testutil.NewSoftwareTPM().RunCommand)
}

func (s *registrySuite) TestRegisterAllocatesLowestFree(c *C) {
	chip0, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	c.Check(chip0.DeviceNumber(), Equals, 0)
	c.Check(chip0.Name(), Equals, "tpm0")

	chip1, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	c.Check(chip1.DeviceNumber(), Equals, 1)
	c.Check(chip1.Name(), Equals, "tpm1")

	c.Check(chip0.DeviceNumber() == chip1.DeviceNumber(), Equals, false)
}

func (s *registrySuite) TestRegisterReusesReleasedNumber(c *C) {
	chip0, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	chip1, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)

	s.registry.Unregister(chip0)

	chip2, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	c.Check(chip2.DeviceNumber(), Equals, 0)
	c.Check(chip1.DeviceNumber(), Equals, 1)
}

func (s *registrySuite) TestRegisterExhaustsPool(c *C) {
	for i := 0; i < NumDeviceNumbers; i++ {
		chip, err := s.registry.Register(nil, s.newBackend())
		c.Assert(err, IsNil)
		c.Check(chip.DeviceNumber(), Equals, i)
	}

	_, err := s.registry.Register(nil, s.newBackend())
	c.Check(err, Equals, ErrNoDeviceNumbers)
}

func (s *registrySuite) TestUnregisterClosesBackend(c *C) {
	backend := s.newBackend()
	chip, err := s.registry.Register(nil, backend)
	c.Assert(err, IsNil)

	s.registry.Unregister(chip)
	c.Check(backend.Closed(), Equals, true)

	_, err = s.registry.Lookup(chip.DeviceNumber())
	c.Check(err, Equals, ErrChipNotFound)
}

func (s *registrySuite) TestUnregisterTwice(c *C) {
	chip0, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	chip1, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)

	s.registry.Unregister(chip0)
	s.registry.Unregister(chip0)

	// The second unregister must not have disturbed chip1's number.
	found, err := s.registry.Lookup(chip1.DeviceNumber())
	c.Assert(err, IsNil)
	c.Check(found, Equals, chip1)
}

func (s *registrySuite) TestLookup(c *C) {
	chip0, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)
	chip1, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)

	found, err := s.registry.Lookup(1)
	c.Assert(err, IsNil)
	c.Check(found, Equals, chip1)

	found, err = s.registry.Lookup(0)
	c.Assert(err, IsNil)
	c.Check(found, Equals, chip0)

	_, err = s.registry.Lookup(2)
	c.Check(err, Equals, ErrChipNotFound)
}

func (s *registrySuite) TestLookupWildcard(c *C) {
	_, err := s.registry.Lookup(AnyChip)
	c.Check(err, Equals, ErrChipNotFound)

	chip, err := s.registry.Register(nil, s.newBackend())
	c.Assert(err, IsNil)

	found, err := s.registry.Lookup(AnyChip)
	c.Assert(err, IsNil)
	c.Check(found, Equals, chip)
}

func (s *registrySuite) TestPlatformDevice(c *C) {
	type platformDevice struct{ path string }
	dev := &platformDevice{path: "/sys/devices/pnp0/00:05"}

	chip, err := s.registry.Register(dev, s.newBackend())
	c.Assert(err, IsNil)
	c.Check(chip.PlatformDevice(), Equals, dev)
}
