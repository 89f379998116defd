// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

/*
Package linux provides a backend that proxies commands to a TPM character
device managed by the kernel, for running this driver core in userspace
against real hardware.

The kernel device has no status register to poll either - readiness of a
response is detected by polling the device descriptor, which maps naturally
onto the backend's Status operation.
*/
package linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/canonical/go-tpm1"
)

const (
	devPath = "/dev"

	statusBusy     uint8 = 0x00
	statusReady    uint8 = 0x01
	statusCanceled uint8 = 0xff
)

var sysfsPath = "/sys"

// ErrNoTPMDevices indicates that there are no TPM devices.
var ErrNoTPMDevices = errors.New("no TPM devices are available")

// DefaultDevice returns a backend for the default TPM character device
// ("/dev/tpm0"). If there is no such device, ErrNoTPMDevices is returned.
func DefaultDevice() (*Backend, error) {
	backend, err := OpenDevice(filepath.Join(devPath, "tpm0"))
	switch {
	case os.IsNotExist(err):
		return nil, ErrNoTPMDevices
	case err != nil:
		return nil, err
	}
	return backend, nil
}

// OpenDevice opens the TPM character device at the supplied path and returns
// a backend suitable for registering with tpm1.Registry.Register. Failure to
// open the character device will result in a *os.PathError being returned.
func OpenDevice(path string) (*Backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	s, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if s.Mode()&os.ModeDevice == 0 {
		f.Close()
		return nil, fmt.Errorf("unsupported file mode %v", s.Mode())
	}

	return &Backend{
		file:       f,
		cancelPath: filepath.Join(sysfsPath, "class/tpm", filepath.Base(path), "device/cancel")}, nil
}

// Backend is an implementation of tpm1.Backend that submits commands to a
// kernel TPM character device. It is not intended to be used from multiple
// goroutines simultaneously.
type Backend struct {
	file       *os.File
	cancelPath string
}

func ignoringEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err != unix.EINTR {
			return n, err
		}
	}
}

// Send implements tpm1.Backend. The command is submitted with a raw write
// system call - the character device's write implementation doesn't play
// nicely with go's netpoller (see Status).
func (b *Backend) Send(data []byte) (int, error) {
	conn, err := b.file.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var writeErr error
	if err := conn.Write(func(fd uintptr) bool {
		n, writeErr = ignoringEINTR(func() (int, error) {
			return unix.Write(int(fd), data)
		})
		return true
	}); err != nil {
		return 0, err
	}
	if writeErr != nil {
		return n, writeErr
	}
	if n < len(data) {
		return n, xerrors.Errorf("short write of command to %s", b.file.Name())
	}
	return n, nil
}

// Status implements tpm1.Backend. The kernel device exposes no status byte,
// so one is synthesized by polling the descriptor: the device becomes
// readable exactly when the response to the last command is ready.
//
// The device's read and poll implementations can misbehave while the
// kernel's command worker holds the buffer lock, so the poll is given a zero
// timeout and any error is treated as "still busy" - the transmit engine
// will simply poll again.
func (b *Backend) Status() uint8 {
	conn, err := b.file.SyscallConn()
	if err != nil {
		return statusBusy
	}

	status := statusBusy
	conn.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		if err == nil && n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			status = statusReady
		}
	})
	return status
}

// Recv implements tpm1.Backend. It is only called once Status has reported
// that the device is readable, so the raw read will not block on a command
// in flight.
func (b *Backend) Recv(buf []byte) (int, error) {
	conn, err := b.file.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var readErr error
	if err := conn.Read(func(fd uintptr) bool {
		n, readErr = ignoringEINTR(func() (int, error) {
			return unix.Read(int(fd), buf)
		})
		return true
	}); err != nil {
		return 0, err
	}
	return n, readErr
}

// Cancel implements tpm1.Backend by writing to the device's cancel attribute
// in sysfs, if the kernel exposes one.
func (b *Backend) Cancel() {
	f, err := os.OpenFile(b.cancelPath, os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write([]byte("1\n"))
}

// StatusProperties implements tpm1.Backend.
func (b *Backend) StatusProperties() tpm1.StatusProperties {
	return tpm1.StatusProperties{
		CompleteMask:  statusReady,
		CompleteValue: statusReady,
		CanceledValue: statusCanceled}
}

// Close closes the character device.
func (b *Backend) Close() error {
	return b.file.Close()
}
