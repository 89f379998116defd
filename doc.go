// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

/*
Package tpm1 implements the device-independent core of a TPM 1.2 driver: the
engine that executes one command/response cycle against a polling-only device,
the registry that hands out stable device numbers to registered chips, and the
exclusive byte-stream session interface layered on top of them.

The hardware-specific part of a driver is supplied as an implementation of the
Backend interface. A backend only needs to know how to start a command, report
a status byte, drain a completed response and request a best-effort abort - the
polling protocol, timeout budget, buffering and session arbitration all live
here. The linux subpackage provides a backend that proxies an existing TPM
character device, and the simulator subpackage provides one that talks to a
software TPM over a socket.

A chip is made available by registering its backend:

	registry := tpm1.NewRegistry()
	chip, err := registry.Register(dev, backend)
	if err != nil {
		return err
	}

In-process callers can then execute raw commands with Chip.Transmit, or use
the typed command catalog (Registry.ReadPCR, Registry.ExtendPCR, Chip.ReadPubEK
and friends). User-facing callers are served by Registry.OpenSession, which
implements the open/write/read/close protocol of the traditional /dev/tpm
character device, including the 60 second expiry of unclaimed responses.

Note that TPM 1.2 devices are not interrupt driven. Command completion is
detected purely by polling the backend status byte, and legitimate operations
(key generation in particular) can take minutes, which is why Chip.Transmit
tolerates a two minute command deadline.
*/
package tpm1
