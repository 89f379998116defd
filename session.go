// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"time"
)

// Session is an exclusive open handle to a chip's byte-stream interface,
// implementing the write-command/read-response protocol of the traditional
// /dev/tpm character device. At most one session can be open per chip.
//
// A session is not an io.ReadWriter in spirit: Write submits one complete
// command blob and blocks until the chip has produced the response, and
// subsequent Reads drain that response. A response that is not claimed
// within 60 seconds of the write completing is silently discarded.
type Session struct {
	chip   *Chip
	closed bool // guarded by chip.sessionMu
}

// OpenSession opens the byte-stream interface of the chip holding the
// supplied device number. It fails with ErrChipNotFound if there is no such
// chip, and with ErrChipInUse if another session currently owns it. The
// session buffer is allocated afresh for each open.
func (r *Registry) OpenSession(devNum int) (*Session, error) {
	chip, err := r.Lookup(devNum)
	if err != nil {
		return nil, err
	}

	chip.sessionMu.Lock()
	defer chip.sessionMu.Unlock()

	if chip.opened {
		return nil, ErrChipInUse
	}
	chip.opened = true
	chip.buf = make([]byte, BufferSize)
	chip.pending = 0
	chip.position = 0

	return &Session{chip: chip}, nil
}

// Chip returns the chip this session owns.
func (s *Session) Chip() *Chip {
	return s.chip
}

// Write submits one command blob to the chip and blocks until the chip has
// produced the response, which becomes available to Read for the next 60
// seconds. It returns the number of input bytes accepted, which is decoupled
// from the size of the response. Data beyond the session buffer's capacity is
// silently truncated - callers relying on partial-send semantics see the
// truncated count in the return value.
//
// A write cannot proceed until the previous response has been fully consumed
// or has expired. Rather than failing, Write blocks until the buffer is
// free: a slow reader backpressures writers instead of having its response
// corrupted.
//
// Errors from the command cycle itself propagate unchanged from
// Chip.Transmit.
func (s *Session) Write(data []byte) (int, error) {
	c := s.chip

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	// Wait for the previous response to be claimed or to expire.
	for c.pending != 0 {
		c.drained.Wait()
		if s.closed {
			return 0, ErrSessionClosed
		}
	}

	n := len(data)
	if n > len(c.buf) {
		n = len(c.buf)
	}
	copy(c.buf, data[:n])

	out, err := c.Transmit(c.buf)
	if err != nil {
		return 0, err
	}

	c.pending = out
	c.position = 0
	c.armExpiry()

	return n, nil
}

// Read copies up to len(buf) bytes of the pending response into buf,
// starting where the previous Read left off. A response may be drained
// incrementally across several reads. If no response is pending - because
// none was written, it was fully consumed, or it expired - Read returns 0
// with no error.
//
// A read claims the response: the expiry timer is stopped immediately and
// is only re-armed by the next Write.
func (s *Session) Read(buf []byte) (int, error) {
	c := s.chip

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}

	c.stopExpiry()

	if c.pending == 0 {
		return 0, nil
	}

	n := c.pending
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, c.buf[c.position:c.position+n])
	c.position += n
	c.pending -= n

	if c.pending == 0 {
		c.drained.Broadcast()
	}
	return n, nil
}

// Close discards any pending response, releases the session buffer and
// relinquishes ownership of the chip, permitting a new OpenSession. It
// unblocks any Write waiting for the buffer to drain.
func (s *Session) Close() error {
	c := s.chip

	c.sessionMu.Lock()
	if s.closed {
		c.sessionMu.Unlock()
		return ErrSessionClosed
	}
	s.closed = true

	c.stopExpiry()
	c.pending = 0
	c.position = 0
	c.buf = nil
	c.opened = false
	c.drained.Broadcast()
	c.sessionMu.Unlock()

	return nil
}

// armExpiry starts the one-shot timer that discards an unclaimed response.
// Must be called with sessionMu held.
func (c *Chip) armExpiry() {
	c.expiryGen++
	gen := c.expiryGen
	c.expiryTimer = time.AfterFunc(responseClaimTimeout, func() {
		c.expireResponse(gen)
	})
}

// stopExpiry cancels any armed expiry timer. Bumping the generation counter
// neutralizes a callback that has already fired but not yet taken the lock.
// Must be called with sessionMu held.
func (c *Chip) stopExpiry() {
	c.expiryGen++
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
}

// expireResponse runs from the timer goroutine. The writer is not notified:
// an unclaimed result simply stops occupying the single session buffer.
func (c *Chip) expireResponse(gen uint64) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if gen != c.expiryGen {
		// A Read, Close or newer Write got there first.
		return
	}

	c.pending = 0
	c.position = 0
	for i := range c.buf {
		c.buf[i] = 0
	}
	c.expiryTimer = nil
	c.drained.Broadcast()
}
