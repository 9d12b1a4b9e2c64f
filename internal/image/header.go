// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package image

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedHeader is returned when the header fields cannot be resolved.
var ErrMalformedHeader = errors.New("malformed header")

// Variant identifies one of the two historical header layouts.
type Variant int

const (
	Short Variant = iota
	Long
)

func (v Variant) String() string {
	switch v {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Sentinel address value meaning "immediately following".
const addressFollowing = 0xffffffff

const (
	// headers newer than this version carry extra padding before the image
	paddedVersion  = 5
	versionPadding = 0x80

	// distance between the end of the signature and the certificate chain
	certificatesPadding = 0xf0
)

// header field offsets, relative to the header start
const (
	fieldImageOffset         = 0x00
	fieldImageAddress        = 0x04
	fieldImageSize           = 0x08
	fieldCodeSize            = 0x0c
	fieldSignatureAddress    = 0x10
	fieldSignatureSize       = 0x14
	fieldCertificatesAddress = 0x18
	fieldCertificatesSize    = 0x1c

	// version is relative to the blob start
	fieldVersion = 0x04
)

// longHeaderMarker identifies the Long header variant: an 8 byte magic, 4
// bytes of any value and 8 bytes of 0xff.
var longHeaderMarker = []byte{
	0xd1, 0xdc, 0x4b, 0x84, 0x34, 0x10, 0xd7, 0x73,
	0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// longHeaderMask selects the fixed bytes of longHeaderMarker.
var longHeaderMask = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// variantRule holds the per variant offsets, relative to the blob start.
type variantRule struct {
	header      uint32
	imageOffset uint32
}

var variantRules = map[Variant]variantRule{
	Short: {header: 8, imageOffset: 0x28},
	Long:  {header: uint32(len(longHeaderMarker)), imageOffset: 0x50},
}

// Layout represents the resolved header of a signed blob, all offsets are
// relative to the buffer passed to Locate.
type Layout struct {
	Variant      Variant
	ImageOffset  uint32
	HeaderOffset uint32
	Version      uint32

	ImageAddress uint32
	ImageSize    uint32
	CodeSize     uint32

	SignatureAddress uint32
	SignatureSize    uint32
	SignatureOffset  uint32

	CertificatesAddress uint32
	CertificatesSize    uint32
	CertificatesOffset  uint32
}

type headerError struct {
	field string
	err   error
}

func (e *headerError) Error() string {
	return fmt.Sprintf("%v, %s: %v", ErrMalformedHeader, e.field, e.err)
}

func (e *headerError) Unwrap() error {
	return e.err
}

func (e *headerError) Is(target error) bool {
	return target == ErrMalformedHeader
}

// Detect returns the header variant of the blob starting at offset.
func Detect(buf []byte, offset uint32) Variant {
	if uint64(offset) > uint64(len(buf)) {
		return Short
	}

	if _, ok := FindWithin(buf, int(offset), len(longHeaderMarker), longHeaderMarker, longHeaderMask); ok {
		return Long
	}

	return Short
}

// Locate resolves the header of the blob starting at offset within buf.
func Locate(buf []byte, offset uint32) (h Layout, err error) {
	v := NewView(buf)

	read := func(name string, off uint32) (val uint32) {
		if err != nil {
			return
		}

		if val, err = v.Uint32(off); err != nil {
			err = &headerError{field: name, err: err}
		}

		return
	}

	h.Variant = Detect(buf, offset)
	rule := variantRules[h.Variant]

	h.HeaderOffset = offset + rule.header
	h.Version = read("version", offset+fieldVersion)

	if h.ImageOffset = read("image offset", h.HeaderOffset+fieldImageOffset); h.ImageOffset == 0 {
		h.ImageOffset = offset + rule.imageOffset
	}

	h.ImageAddress = read("image address", h.HeaderOffset+fieldImageAddress)
	h.ImageSize = read("image size", h.HeaderOffset+fieldImageSize)
	h.CodeSize = read("code size", h.HeaderOffset+fieldCodeSize)
	h.SignatureAddress = read("signature address", h.HeaderOffset+fieldSignatureAddress)
	h.SignatureSize = read("signature size", h.HeaderOffset+fieldSignatureSize)
	h.CertificatesAddress = read("certificates address", h.HeaderOffset+fieldCertificatesAddress)
	h.CertificatesSize = read("certificates size", h.HeaderOffset+fieldCertificatesSize)

	if err != nil {
		return Layout{}, err
	}

	if h.SignatureAddress == addressFollowing {
		h.SignatureAddress = h.ImageAddress + h.CodeSize
	}

	if h.CertificatesAddress == addressFollowing {
		h.CertificatesAddress = h.SignatureAddress + h.SignatureSize
	}

	if h.Version > paddedVersion {
		h.ImageOffset += versionPadding
	}

	h.SignatureOffset = h.ImageOffset + h.CodeSize
	h.CertificatesOffset = h.ImageOffset + h.CodeSize + h.SignatureSize + certificatesPadding

	return
}
