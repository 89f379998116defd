// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package tpm1

import (
	"time"
)

// MockCommandDeadline overrides the transmit engine's command deadline for
// the duration of a test.
func MockCommandDeadline(d time.Duration) (restore func()) {
	orig := commandDeadline
	commandDeadline = d
	return func() {
		commandDeadline = orig
	}
}

// MockPollInterval overrides the transmit engine's status poll interval for
// the duration of a test.
func MockPollInterval(d time.Duration) (restore func()) {
	orig := pollInterval
	pollInterval = d
	return func() {
		pollInterval = orig
	}
}

// MockResponseClaimTimeout overrides the session response expiry timeout for
// the duration of a test.
func MockResponseClaimTimeout(d time.Duration) (restore func()) {
	orig := responseClaimTimeout
	responseClaimTimeout = d
	return func() {
		responseClaimTimeout = orig
	}
}
