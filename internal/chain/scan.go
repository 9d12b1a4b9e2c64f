// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chain

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// sequence tag and long form marker, as read little-endian
const sequenceMarker = 0x8230

// minimum bytes needed to test a position: outer tag, length, inner tag
const scanWindow = 6

// ScanOptions controls the Scan strategy.
type ScanOptions struct {
	// FailOnBreak makes Scan return ErrChainBroken when a certificate is
	// found after a gap, rather than the certificates collected so far.
	FailOnBreak bool
}

// scanState is the accumulator of the scan fold.
type scanState struct {
	chain   Chain
	lastEnd uint32
	done    bool
	err     error
}

// Scan searches the whole buffer for certificates, ignoring any header.
//
// A certificate start is identified by a SEQUENCE header with a two bytes
// length, immediately followed by a second SEQUENCE header (the
// TBSCertificate). Certificates must be contiguous, the chain ends at the
// first gap.
func Scan(buf []byte, opts ScanOptions) (Chain, error) {
	s := scanState{}

	for i := 0; i+scanWindow <= len(buf) && !s.done; i++ {
		s = s.step(buf, uint32(i), opts)
	}

	if s.err != nil {
		return Chain{}, s.err
	}

	if s.chain.Len() == 0 {
		return Chain{}, errors.Wrap(ErrNoCertificatesFound, "scan")
	}

	return s.chain, nil
}

func (s scanState) step(buf []byte, i uint32, opts ScanOptions) scanState {
	if i < s.lastEnd {
		// within the last certificate
		return s
	}

	size, ok := certificateAt(buf, i)

	if !ok {
		return s
	}

	if s.chain.Len() > 0 && i != s.lastEnd {
		s.done = true

		if opts.FailOnBreak {
			s.err = errors.Wrapf(ErrChainBroken, "certificate at %#x, previous ending at %#x", i, s.lastEnd)
		}

		return s
	}

	s.chain = s.chain.append(buf[i:i+size], i)
	s.lastEnd = i + size

	return s
}

// certificateAt returns the size of the certificate starting at i, if any.
func certificateAt(buf []byte, i uint32) (size uint32, ok bool) {
	b := buf[i:]

	if binary.LittleEndian.Uint16(b[0:]) != sequenceMarker ||
		binary.LittleEndian.Uint16(b[4:]) != sequenceMarker {
		return
	}

	n := int16(binary.BigEndian.Uint16(b[2:]))

	if n < 0 {
		return
	}

	size = uint32(n) + headerSize

	if uint64(i)+uint64(size) > uint64(len(buf)) {
		return 0, false
	}

	return size, true
}
