// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package elfseg

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/pkg/errors"
)

// ErrInvalidELF is returned when program segments cannot be read.
var ErrInvalidELF = errors.New("invalid ELF")

// maximum memory image of a single segment
const maxSegmentSize = 256 << 20

// IsELF reports whether buf starts with the ELF magic.
func IsELF(buf []byte) bool {
	return bytes.HasPrefix(buf, []byte(elf.ELFMAG))
}

// Segments returns the program segments of an ELF image. Contents are read
// on demand, as the segment memory image: its file bytes zero filled up to
// its memory size.
func Segments(buf []byte) (segments []Segment, err error) {
	f, err := elf.NewFile(bytes.NewReader(buf))

	if err != nil {
		return nil, errors.Wrapf(ErrInvalidELF, "%v", err)
	}

	for i, p := range f.Progs {
		i, p := i, p

		segments = append(segments, Segment{
			Type:  p.Type,
			Flags: p.Flags,
			Contents: func() ([]byte, error) {
				return memoryImage(i, p)
			},
		})
	}

	return
}

func memoryImage(i int, p *elf.Prog) ([]byte, error) {
	size := p.Memsz

	if size < p.Filesz {
		size = p.Filesz
	}

	if size > maxSegmentSize {
		return nil, errors.Wrapf(ErrInvalidELF, "segment %d size %#x", i, size)
	}

	data, err := io.ReadAll(p.Open())

	if err != nil {
		return nil, errors.Wrapf(ErrInvalidELF, "segment %d, %v", i, err)
	}

	if uint64(len(data)) != p.Filesz {
		return nil, errors.Wrapf(ErrInvalidELF, "segment %d truncated", i)
	}

	contents := make([]byte, size)
	copy(contents, data)

	return contents, nil
}
