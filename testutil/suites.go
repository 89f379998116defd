// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package testutil

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/go-tpm1"
)

// BaseTest is a base test suite for all tests.
type BaseTest struct {
	cleanupHandlers []func()
}

func (b *BaseTest) SetUpTest(c *C) {
	if len(b.cleanupHandlers) > 0 {
		panic("cleanup handlers were not executed at the end of the previous test, missing BaseTest.TearDownTest call?")
	}
}

func (b *BaseTest) TearDownTest(c *C) {
	for len(b.cleanupHandlers) > 0 {
		l := len(b.cleanupHandlers)
		fn := b.cleanupHandlers[l-1]
		b.cleanupHandlers = b.cleanupHandlers[:l-1]
		fn()
	}
}

// AddCleanup queues a function to be called at the end of the test.
func (b *BaseTest) AddCleanup(fn func()) {
	b.cleanupHandlers = append(b.cleanupHandlers, fn)
}

// ChipTest is a base test suite for tests that need a registered chip backed
// by a software TPM. SetUpTest populates Registry, Backend, TPM and Chip.
type ChipTest struct {
	BaseTest

	Registry *tpm1.Registry
	TPM      *SoftwareTPM
	Backend  *FakeBackend
	Chip     *tpm1.Chip
}

func (s *ChipTest) SetUpTest(c *C) {
	s.BaseTest.SetUpTest(c)

	s.Registry = tpm1.NewRegistry()
	s.TPM = NewSoftwareTPM()
	s.Backend = NewFakeBackend(s.TPM.RunCommand)

	chip, err := s.Registry.Register(nil, s.Backend)
	c.Assert(err, IsNil)
	s.Chip = chip

	s.AddCleanup(func() {
		s.Registry.Unregister(s.Chip)
	})
}
