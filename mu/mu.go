// Copyright 2026 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package mu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

// RawBytes is a special byte slice type which is marshalled and unmarshalled
// without a size field. The slice must be pre-allocated to the correct length
// by the caller during unmarshalling.
type RawBytes []byte

// Error is returned from any function in this package to provide context
// of where an error occurred.
type Error struct {
	// Index indicates the argument on which this error occurred.
	Index int

	// Op describes the operation ("marshal" or "unmarshal").
	Op string

	err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot %s argument %d: %v", e.Op, e.Index, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

type countingWriter struct {
	w io.Writer
	n int
}

func (w *countingWriter) Write(data []byte) (int, error) {
	n, err := w.w.Write(data)
	w.n += n
	return n, err
}

type countingReader struct {
	r io.Reader
	n int
}

func (r *countingReader) Read(data []byte) (int, error) {
	n, err := r.r.Read(data)
	r.n += n
	return n, err
}

func marshalValue(w io.Writer, val interface{}) error {
	switch v := val.(type) {
	case RawBytes:
		_, err := w.Write(v)
		return err
	case []byte:
		_, err := w.Write(v)
		return err
	default:
		return binary.Write(w, binary.BigEndian, val)
	}
}

func unmarshalValue(r io.Reader, val interface{}) error {
	switch v := val.(type) {
	case RawBytes:
		_, err := io.ReadFull(r, v)
		return err
	case []byte:
		_, err := io.ReadFull(r, v)
		return err
	default:
		return binary.Read(r, binary.BigEndian, val)
	}
}

// MarshalToWriter marshals vals to w in the TPM 1.2 wire format, according
// to the rules specified in the package description. The number of bytes
// written to w are returned. If this function does not complete successfully,
// it will return an error and the number of bytes written.
func MarshalToWriter(w io.Writer, vals ...interface{}) (int, error) {
	cw := &countingWriter{w: w}
	for i, val := range vals {
		if err := marshalValue(cw, val); err != nil {
			return cw.n, &Error{Index: i, Op: "marshal", err: err}
		}
	}
	return cw.n, nil
}

// MarshalToBytes marshals vals to a new byte slice in the TPM 1.2 wire format,
// according to the rules specified in the package description.
func MarshalToBytes(vals ...interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := MarshalToWriter(buf, vals...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshalToBytes is the same as MarshalToBytes, except that it panics if
// it encounters an error.
func MustMarshalToBytes(vals ...interface{}) []byte {
	b, err := MarshalToBytes(vals...)
	if err != nil {
		panic(err)
	}
	return b
}

// UnmarshalFromReader unmarshals data in the TPM 1.2 wire format from r to
// vals, according to the rules specified in the package description. The
// values supplied to this function must be pointers.
//
// The number of bytes consumed from r are returned. If this function does
// not complete successfully, it will return an error and the number of bytes
// consumed.
func UnmarshalFromReader(r io.Reader, vals ...interface{}) (int, error) {
	cr := &countingReader{r: r}
	for i, val := range vals {
		if err := unmarshalValue(cr, val); err != nil {
			return cr.n, &Error{Index: i, Op: "unmarshal", err: err}
		}
	}
	return cr.n, nil
}

// UnmarshalFromBytes unmarshals data in the TPM 1.2 wire format from b to
// vals, according to the rules specified in the package description. The
// values supplied to this function must be pointers.
//
// If successful, this function returns the number of bytes consumed from b.
// In this case, the number of bytes consumed may be less than the size of b.
// If this function does not complete successfully, it will return an error and
// the number of bytes consumed.
func UnmarshalFromBytes(b []byte, vals ...interface{}) (int, error) {
	buf := bytes.NewReader(b)
	n, err := UnmarshalFromReader(buf, vals...)
	if err != nil {
		return n, err
	}
	return n, nil
}

// CopyValue copies the value of src to dst by marshalling src and
// unmarshalling the result to dst, which must be a pointer.
func CopyValue(dst, src interface{}) error {
	b, err := MarshalToBytes(src)
	if err != nil {
		return xerrors.Errorf("cannot marshal source value: %w", err)
	}
	if _, err := UnmarshalFromBytes(b, dst); err != nil {
		return xerrors.Errorf("cannot unmarshal intermediate bytes: %w", err)
	}
	return nil
}
