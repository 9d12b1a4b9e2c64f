// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package elfseg locates the signed blob carried by an ELF firmware image.
//
// The blob lives in a non-loadable (PT_NULL) program segment marked by a
// processor specific flag pattern.
package elfseg

import (
	"debug/elf"

	"github.com/pkg/errors"
)

var (
	// ErrNoSigningSegment is returned when no segment carries a signed blob.
	ErrNoSigningSegment = errors.New("no signing segment")

	// ErrAmbiguousSigningSegment is returned when more than one segment
	// carries a signed blob, such images are not supported.
	ErrAmbiguousSigningSegment = errors.New("more than one signing segment")
)

// processor specific flag bits marking the signing segment
const (
	signingFlagsMask = 0x0f000000
	signingFlags     = 0x02000000
)

// Segment represents an ELF program segment.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag

	// Contents reads the segment memory image.
	Contents func() ([]byte, error)
}

// IsSigning reports whether s carries the signed blob.
func (s Segment) IsSigning() bool {
	return s.Type == elf.PT_NULL && s.Flags&signingFlagsMask == signingFlags
}

// Locate returns the contents of the unique signing segment, the contents of
// other segments are never read.
func Locate(segments []Segment) (blob []byte, err error) {
	found := -1

	for i, s := range segments {
		if !s.IsSigning() {
			continue
		}

		if found >= 0 {
			return nil, errors.Wrapf(ErrAmbiguousSigningSegment, "segments %d and %d", found, i)
		}

		found = i
	}

	if found < 0 {
		return nil, errors.Wrapf(ErrNoSigningSegment, "%d segments", len(segments))
	}

	if segments[found].Contents == nil {
		return []byte{}, nil
	}

	return segments[found].Contents()
}

// Extract returns the signed blob of an ELF image.
func Extract(buf []byte) ([]byte, error) {
	segments, err := Segments(buf)

	if err != nil {
		return nil, err
	}

	return Locate(segments)
}
