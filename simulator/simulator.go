// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

/*
Package simulator provides a backend for communicating with software TPM 1.2
implementations over a stream socket. Command blobs are written to the socket
as-is and response blobs are read back, with the response length taken from
the response header.

Because a socket has no status register, the backend synthesizes one: a
dedicated receive goroutine waits for each response and the status byte flips
to "complete" once a full response has been buffered.
*/
package simulator

import (
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/xerrors"
	"gopkg.in/tomb.v2"

	"github.com/canonical/go-tpm1"
	"github.com/canonical/go-tpm1/mu"
)

const (
	// DefaultPort is the command port conventionally used by software
	// TPM 1.2 implementations.
	DefaultPort uint = 6543

	maxResponseSize = 4096

	statusBusy     uint8 = 0x00
	statusReady    uint8 = 0x01
	statusCanceled uint8 = 0xff
)

// DefaultDevice describes a simulator running on the local machine on the
// conventional port.
var DefaultDevice = &Device{port: DefaultPort}

// Device describes a TPM simulator device.
type Device struct {
	host string
	port uint
}

// NewDevice returns a Device describing a simulator at the supplied host and
// port.
func NewDevice(host string, port uint) *Device {
	return &Device{host: host, port: port}
}

// Host is the host that the TPM simulator is running on.
func (d *Device) Host() string {
	if d.host == "" {
		return "localhost"
	}
	return d.host
}

// Port is the port number of the TPM simulator's command channel.
func (d *Device) Port() uint {
	return d.port
}

// Open connects to the simulator and returns a backend suitable for
// registering with tpm1.Registry.Register.
func (d *Device) Open() (*Backend, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", d.Host(), d.Port()))
	if err != nil {
		return nil, xerrors.Errorf("cannot connect to simulator socket: %w", err)
	}
	return NewBackend(conn), nil
}

// String implements [fmt.Stringer].
func (d *Device) String() string {
	return fmt.Sprintf("tpm simulator, host=\"%s\", port=%d", d.Host(), d.Port())
}

// Backend is an implementation of tpm1.Backend that exchanges blobs with a
// software TPM over the supplied connection.
type Backend struct {
	conn net.Conn
	tomb *tomb.Tomb

	mu  sync.Mutex
	rsp []byte
	err error
}

// NewBackend returns a Backend that exchanges blobs with a software TPM over
// the supplied connection. It takes ownership of the connection, which is
// closed by Close.
func NewBackend(conn net.Conn) *Backend {
	b := &Backend{
		conn: conn,
		tomb: new(tomb.Tomb)}
	b.tomb.Go(b.recvLoop)
	return b
}

// recvLoop runs on its own goroutine, turning each response blob arriving on
// the connection into a buffered response that Status and Recv can observe.
func (b *Backend) recvLoop() error {
	for b.tomb.Alive() {
		hdrBytes := make([]byte, tpm1.HeaderSize)
		if _, err := io.ReadFull(b.conn, hdrBytes); err != nil {
			return b.fail(xerrors.Errorf("cannot receive response header: %w", err))
		}

		var hdr tpm1.ResponseHeader
		if _, err := mu.UnmarshalFromBytes(hdrBytes, &hdr); err != nil {
			return b.fail(xerrors.Errorf("cannot decode response header: %w", err))
		}
		if hdr.Size < tpm1.HeaderSize || hdr.Size > maxResponseSize {
			return b.fail(fmt.Errorf("response header declares an invalid size (%d bytes)", hdr.Size))
		}

		blob := make([]byte, hdr.Size)
		copy(blob, hdrBytes)
		if _, err := io.ReadFull(b.conn, blob[tpm1.HeaderSize:]); err != nil {
			return b.fail(xerrors.Errorf("cannot receive response body: %w", err))
		}

		b.mu.Lock()
		b.rsp = blob
		b.mu.Unlock()
	}
	return nil
}

// fail records err so that status polls report completion and Recv surfaces
// the failure. Connection errors caused by Close are not recorded.
func (b *Backend) fail(err error) error {
	if !b.tomb.Alive() {
		return nil
	}
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	return nil
}

// Send implements tpm1.Backend.
func (b *Backend) Send(data []byte) (int, error) {
	if _, err := b.conn.Write(data); err != nil {
		return 0, xerrors.Errorf("cannot send command to simulator: %w", err)
	}
	return len(data), nil
}

// Status implements tpm1.Backend.
func (b *Backend) Status() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rsp != nil || b.err != nil {
		return statusReady
	}
	return statusBusy
}

// Recv implements tpm1.Backend.
func (b *Backend) Recv(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The receive goroutine has terminated by the time an error is
	// recorded, so the error stays sticky: every later command fails fast
	// here instead of polling out the command deadline.
	if b.err != nil {
		return 0, b.err
	}

	n := copy(buf, b.rsp)
	b.rsp = nil
	return n, nil
}

// Cancel implements tpm1.Backend. A software TPM executes commands promptly,
// so there is nothing useful to abort.
func (b *Backend) Cancel() {}

// StatusProperties implements tpm1.Backend.
func (b *Backend) StatusProperties() tpm1.StatusProperties {
	return tpm1.StatusProperties{
		CompleteMask:  statusReady,
		CompleteValue: statusReady,
		CanceledValue: statusCanceled}
}

// Close shuts down the receive goroutine and closes the connection.
func (b *Backend) Close() error {
	b.tomb.Kill(nil)
	closeErr := b.conn.Close()
	if err := b.tomb.Wait(); err != nil {
		return err
	}
	return closeErr
}
