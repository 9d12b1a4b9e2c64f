// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chain

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// ErrInvalidDER is returned by Strict for certificates which are not a single
// well formed DER SEQUENCE.
var ErrInvalidDER = errors.New("invalid DER certificate")

// Strict checks that every certificate of the chain is exactly one DER
// SEQUENCE whose first element is itself a SEQUENCE. Certificate fields are
// not parsed.
func Strict(c Chain) error {
	for _, cert := range c.Certificates {
		if err := strict(cert.Raw); err != nil {
			return errors.Wrapf(err, "certificate %d at %#x", cert.Position, cert.Offset)
		}
	}

	return nil
}

func strict(raw []byte) error {
	var outer, tbs cryptobyte.String

	in := cryptobyte.String(raw)

	if !in.ReadASN1(&outer, asn1.SEQUENCE) {
		return errors.Wrap(ErrInvalidDER, "outer SEQUENCE")
	}

	if !in.Empty() {
		return errors.Wrapf(ErrInvalidDER, "%d trailing bytes", len(in))
	}

	if !outer.ReadASN1(&tbs, asn1.SEQUENCE) {
		return errors.Wrap(ErrInvalidDER, "inner SEQUENCE")
	}

	return nil
}
