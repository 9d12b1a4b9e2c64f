// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/f-secure-foundry/rkh-reader/internal/batch"
	"github.com/f-secure-foundry/rkh-reader/internal/rkh"
)

type reporter struct {
	out io.Writer

	fuse   bool
	qr     bool
	expect rkh.Hash

	failed     int
	mismatched int
}

// parseHash accepts hex with optional 0x prefix, colons and spaces.
func parseHash(s string) (h rkh.Hash, err error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.NewReplacer(":", "", " ", "").Replace(s)

	if h, err = hex.DecodeString(s); err != nil {
		return nil, errors.Wrap(err, "invalid hash")
	}

	switch len(h) {
	case rkh.SHA256.Size(), rkh.SHA384.Size():
		return
	default:
		return nil, errors.Errorf("invalid hash length %d", len(h))
	}
}

func (r *reporter) write(res batch.Result) (err error) {
	if res.Err != nil {
		r.failed++

		if r.expect != nil {
			r.mismatched++
		}

		_, err = fmt.Fprintf(r.out, "%s\n  FAIL: %s: %v\n", res.Name, rkh.Kind(res.Err), res.Err)
		return
	}

	h := res.Report.Hash

	if r.fuse {
		h = h.Fuse()
	}

	_, err = fmt.Fprintf(r.out, "%s\n  RKH: %s\n  %s %s, %d certificates\n",
		res.Name, h, res.Report.Pipeline, res.Report.Algorithm, res.Report.Chain.Len())

	if err != nil {
		return
	}

	if r.expect != nil {
		status := "MATCH"

		if !bytes.Equal(h, r.expect) {
			status = "MISMATCH"
			r.mismatched++
		}

		if _, err = fmt.Fprintf(r.out, "  %s\n", status); err != nil {
			return
		}
	}

	if r.qr {
		var code string

		if code, err = qrText(h.String()); err != nil {
			return
		}

		_, err = io.WriteString(r.out, code)
	}

	return
}

// qrText renders the QR code of s with half block characters, two modules
// rows per line.
func qrText(s string) (string, error) {
	q, err := qrcode.New(s, qrcode.Medium)

	if err != nil {
		return "", err
	}

	bitmap := q.Bitmap()

	var b strings.Builder

	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bottom := y+1 < len(bitmap) && bitmap[y+1][x]

			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteRune(' ')
			}
		}

		b.WriteByte('\n')
	}

	return b.String(), nil
}
