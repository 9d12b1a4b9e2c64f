// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package image locates the signature header of a signed firmware blob and
// resolves the offsets of its code, signature and certificate areas.
package image

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrOutOfBounds is returned by any read past the end of a View.
var ErrOutOfBounds = errors.New("read out of bounds")

// View provides bounds checked reads over an immutable byte buffer.
type View struct {
	buf []byte
}

// NewView returns a View over buf, buf must not be modified while in use.
func NewView(buf []byte) View {
	return View{buf: buf}
}

// Len returns the buffer length.
func (v View) Len() int {
	return len(v.buf)
}

func (v View) check(off uint32, n uint32) error {
	if uint64(off)+uint64(n) > uint64(len(v.buf)) {
		return errors.Wrapf(ErrOutOfBounds, "offset:%#x size:%#x len:%#x", off, n, len(v.buf))
	}

	return nil
}

// Bytes returns n bytes at off, the returned slice aliases the buffer.
func (v View) Bytes(off uint32, n uint32) (b []byte, err error) {
	if err = v.check(off, n); err != nil {
		return
	}

	return v.buf[off : off+n : off+n], nil
}

// Uint32 reads a little-endian 32-bit value at off.
func (v View) Uint32(off uint32) (uint32, error) {
	b, err := v.Bytes(off, 4)

	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// Uint16 reads a little-endian 16-bit value at off.
func (v View) Uint16(off uint32) (uint16, error) {
	b, err := v.Bytes(off, 2)

	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// BigUint16 reads a big-endian 16-bit value at off, as used by DER length
// fields.
func (v View) BigUint16(off uint32) (uint16, error) {
	b, err := v.Bytes(off, 2)

	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b), nil
}
