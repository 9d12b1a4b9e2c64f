// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chain

import (
	"github.com/pkg/errors"

	"github.com/f-secure-foundry/rkh-reader/internal/image"
)

// FromLayout walks the certificate area resolved by an image header.
func FromLayout(buf []byte, l image.Layout) (Chain, error) {
	return Structured(buf, l.CertificatesOffset, l.CertificatesSize)
}

// Structured walks the certificate area of size bytes at off.
//
// The area is expected to be filled by concatenated certificates, the one
// ending exactly at the area end being the root. When the walk meets bytes
// which are not a certificate header, or a certificate overrunning the area,
// the last complete certificate is taken as root instead.
func Structured(buf []byte, off uint32, size uint32) (c Chain, err error) {
	v := image.NewView(buf)
	end := uint64(off) + uint64(size)

	for cursor := off; uint64(cursor) < end; {
		var hdr, raw []byte
		var n uint16

		if hdr, err = v.Bytes(cursor, 2); err != nil {
			return Chain{}, errors.Wrapf(err, "certificate header at %#x", cursor)
		}

		if hdr[0] != tagSequence || hdr[1] != tagLength2 {
			// not a certificate, the previous one is the root
			break
		}

		if n, err = v.BigUint16(cursor + 2); err != nil {
			return Chain{}, errors.Wrapf(err, "certificate length at %#x", cursor)
		}

		certSize := uint32(n) + headerSize
		certEnd := uint64(cursor) + uint64(certSize)

		if certEnd > end {
			// overrun, the previous one is the root
			break
		}

		if raw, err = v.Bytes(cursor, certSize); err != nil {
			return Chain{}, errors.Wrapf(err, "certificate at %#x", cursor)
		}

		c = c.append(raw, cursor)

		if certEnd == end {
			return c, nil
		}

		cursor += certSize
	}

	if c.Len() == 0 {
		return Chain{}, errors.Wrapf(ErrNoCertificatesFound, "certificate area %#x-%#x", off, end)
	}

	return c, nil
}
