// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"fmt"
	"io"
	"sync"
)

const devNumMaskWords = NumDeviceNumbers / 32

// Registry is the table of active chips. It allocates stable device numbers
// from a fixed pool of NumDeviceNumbers identities and provides lookup by
// number. All of its operations contend only on a short-held internal lock -
// none of them touch hardware.
type Registry struct {
	mu         sync.Mutex
	chips      []*Chip
	devNumMask [devNumMaskWords]uint32
}

// NewRegistry returns an empty chip registry.
func NewRegistry() *Registry {
	return new(Registry)
}

// Register creates a chip for the supplied backend, allocates the lowest
// free device number to it and publishes it for lookup. The dev argument is
// an opaque handle to the platform device that discovered the chip and is
// retained for the caller's benefit only.
//
// The chip that receives device number 0 is named "tpm0" and is the
// conventional primary chip of the system; every chip is named after its
// device number.
//
// If every device number is held by a live chip, Register returns
// ErrNoDeviceNumbers.
func (r *Registry) Register(dev interface{}, backend Backend) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	devNum := -1
	for i := 0; i < devNumMaskWords && devNum < 0; i++ {
		for j := 0; j < 32; j++ {
			if r.devNumMask[i]&(1<<uint(j)) == 0 {
				devNum = i*32 + j
				r.devNumMask[i] |= 1 << uint(j)
				break
			}
		}
	}
	if devNum < 0 {
		return nil, ErrNoDeviceNumbers
	}

	chip := newChip(fmt.Sprintf("tpm%d", devNum), devNum, dev, backend, r)
	r.chips = append(r.chips, chip)
	return chip, nil
}

// Unregister removes the supplied chip from the registry, returns its device
// number to the pool for reuse and releases the backend's resources if the
// backend implements io.Closer. Unregistering a chip that is not in the
// registry is a no-op.
//
// Lookups running concurrently with Unregister either observe the chip or
// don't - never a half-removed entry.
func (r *Registry) Unregister(chip *Chip) {
	r.mu.Lock()
	registered := false
	for i, c := range r.chips {
		if c == chip {
			r.chips = append(r.chips[:i], r.chips[i+1:]...)
			registered = true
			break
		}
	}
	if registered {
		r.devNumMask[chip.devNum/32] &^= 1 << uint(chip.devNum%32)
	}
	r.mu.Unlock()

	if !registered {
		return
	}
	if closer, ok := chip.backend.(io.Closer); ok {
		closer.Close()
	}
}

// Lookup returns the chip holding the supplied device number, or
// ErrChipNotFound if there is none. Passing AnyChip selects the first
// registered chip, for callers that want whatever TPM the system has.
func (r *Registry) Lookup(devNum int) (*Chip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, chip := range r.chips {
		if chip.devNum == devNum || devNum == AnyChip {
			return chip, nil
		}
	}
	return nil, ErrChipNotFound
}
