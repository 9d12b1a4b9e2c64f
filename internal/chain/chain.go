// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package chain recovers the DER certificate chain appended to a signed
// firmware blob.
//
// Two strategies are available: Structured walks the certificate area
// resolved from the image header, Scan searches the whole buffer for nested
// SEQUENCE headers when the header offsets cannot be trusted. Both return
// certificates in file order with the root last.
package chain

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoCertificatesFound is returned when no certificate could be
	// recovered.
	ErrNoCertificatesFound = errors.New("no certificates found")

	// ErrChainBroken is returned by Scan, when enabled, if certificates
	// are not contiguous.
	ErrChainBroken = errors.New("certificate chain broken")
)

const (
	// DER SEQUENCE tag followed by a two bytes long form length
	tagSequence = 0x30
	tagLength2  = 0x82

	// tag and length bytes preceding the certificate contents
	headerSize = 4
)

// Certificate represents a DER encoded certificate within a chain.
type Certificate struct {
	// Raw holds the complete encoding, including its 4 bytes header.
	Raw []byte
	// DeclaredLength is the content length from the DER header.
	DeclaredLength uint32
	// Position is the index within the chain, 0 being the leaf.
	Position int
	// Offset is the position of the certificate within the analyzed buffer.
	Offset uint32
}

// Chain represents an ordered certificate chain, leaf first and root last.
type Chain struct {
	Certificates []Certificate
}

// Len returns the number of certificates.
func (c Chain) Len() int {
	return len(c.Certificates)
}

// Root returns the last certificate of the chain.
func (c Chain) Root() (Certificate, error) {
	if len(c.Certificates) == 0 {
		return Certificate{}, ErrNoCertificatesFound
	}

	return c.Certificates[len(c.Certificates)-1], nil
}

func (c Chain) append(raw []byte, off uint32) Chain {
	cert := Certificate{
		Raw:            append([]byte(nil), raw...),
		DeclaredLength: uint32(len(raw)) - headerSize,
		Position:       len(c.Certificates),
		Offset:         off,
	}

	return Chain{Certificates: append(c.Certificates, cert)}
}
