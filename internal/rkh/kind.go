// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package rkh

import (
	"github.com/pkg/errors"

	"github.com/f-secure-foundry/rkh-reader/internal/chain"
	"github.com/f-secure-foundry/rkh-reader/internal/elfseg"
	"github.com/f-secure-foundry/rkh-reader/internal/image"
)

// error kinds, most specific first
var kinds = []struct {
	err  error
	name string
}{
	{elfseg.ErrAmbiguousSigningSegment, "AmbiguousSigningSegment"},
	{elfseg.ErrNoSigningSegment, "NoSigningSegment"},
	{elfseg.ErrInvalidELF, "InvalidELF"},
	{image.ErrMalformedHeader, "MalformedHeader"},
	{image.ErrOutOfBounds, "OutOfBounds"},
	{chain.ErrChainBroken, "ChainBroken"},
	{chain.ErrInvalidDER, "InvalidDER"},
	{chain.ErrNoCertificatesFound, "NoCertificatesFound"},
}

// Kind returns the name of the failure kind of err, "Unknown" for errors not
// raised by the analysis.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}

	return "Unknown"
}
