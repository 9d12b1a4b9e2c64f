// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/rkh-reader/internal/fixture"
	"github.com/f-secure-foundry/rkh-reader/internal/image"
)

func assertChain(t *testing.T, c Chain, certs [][]byte, base int) {
	t.Helper()

	require.Equal(t, len(certs), c.Len())

	off := base

	for i, cert := range c.Certificates {
		assert.Equal(t, certs[i], cert.Raw)
		assert.Equal(t, i, cert.Position)
		assert.Equal(t, uint32(off), cert.Offset)
		assert.Equal(t, len(cert.Raw), int(cert.DeclaredLength)+4)

		off += len(certs[i])
	}

	root, err := c.Root()
	require.NoError(t, err)
	assert.Equal(t, certs[len(certs)-1], root.Raw)
}

func TestStructuredExactArea(t *testing.T) {
	for n := 1; n <= 3; n++ {
		certs := fixture.Chain(t, n)
		prefix := bytes.Repeat([]byte{0xaa}, 0x30)
		buf := fixture.Concat(prefix, fixture.Concat(certs...), []byte{0x30, 0x82})

		c, err := Structured(buf, uint32(len(prefix)), uint32(len(buf)-len(prefix)-2))
		require.NoError(t, err)

		assertChain(t, c, certs, len(prefix))
	}
}

func TestStructuredFromLayout(t *testing.T) {
	img := fixture.Image{
		Version:      6,
		Code:         bytes.Repeat([]byte{0x11}, 0x200),
		Signature:    bytes.Repeat([]byte{0x22}, 0x100),
		Certificates: fixture.Chain(t, 3),
	}

	buf := img.Bytes()

	l, err := image.Locate(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(img.CertificatesOffset()), l.CertificatesOffset)

	c, err := FromLayout(buf, l)
	require.NoError(t, err)

	assertChain(t, c, img.Certificates, img.CertificatesOffset())
}

func TestStructuredStepBackOnPadding(t *testing.T) {
	certs := fixture.Chain(t, 3)
	padding := bytes.Repeat([]byte{0xff}, 0x100)
	buf := fixture.Concat(fixture.Concat(certs...), padding)

	c, err := Structured(buf, 0, uint32(len(buf)))
	require.NoError(t, err)

	assertChain(t, c, certs, 0)
}

func TestStructuredStepBackOnOverrun(t *testing.T) {
	certs := fixture.Chain(t, 3)
	buf := fixture.Concat(certs...)

	// the declared area ends within the last certificate
	size := len(buf) - 0x10

	c, err := Structured(buf, 0, uint32(size))
	require.NoError(t, err)

	assertChain(t, c, certs[:2], 0)
}

func TestStructuredNoCertificates(t *testing.T) {
	cert := fixture.Certificate(t, "root")

	for _, tc := range []struct {
		name string
		buf  []byte
		size uint32
	}{
		{"empty area", cert, 0},
		{"no sequence", bytes.Repeat([]byte{0xff}, 64), 64},
		{"short length form", []byte{0x30, 0x81, 0x10, 0x00}, 4},
		{"first certificate overruns", cert, uint32(len(cert) - 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Structured(tc.buf, 0, tc.size)

			assert.True(t, errors.Is(err, ErrNoCertificatesFound), "%v", err)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestStructuredOutOfBounds(t *testing.T) {
	cert := fixture.Certificate(t, "root")

	// the certificate is cut short by the end of the buffer
	_, err := Structured(cert[:len(cert)-4], 0, uint32(len(cert)))
	assert.True(t, errors.Is(err, image.ErrOutOfBounds), "%v", err)

	// area starts past the buffer
	_, err = Structured(cert, uint32(len(cert)+1), 16)
	assert.True(t, errors.Is(err, image.ErrOutOfBounds), "%v", err)
}

func TestScanShortBuffers(t *testing.T) {
	for n := 0; n < 6; n++ {
		buf := []byte{0x30, 0x82, 0x00, 0x00, 0x30, 0x82}[:n]

		_, err := Scan(buf, ScanOptions{})
		assert.True(t, errors.Is(err, ErrNoCertificatesFound), "len %d", n)
	}
}

func TestScanContiguousChain(t *testing.T) {
	certs := fixture.Chain(t, 3)
	prefix := bytes.Repeat([]byte{0x00}, 0x123)
	buf := fixture.Concat(prefix, fixture.Concat(certs...), bytes.Repeat([]byte{0xff}, 0x40))

	c, err := Scan(buf, ScanOptions{})
	require.NoError(t, err)

	assertChain(t, c, certs, len(prefix))
}

func TestScanChainBreak(t *testing.T) {
	certs := fixture.Chain(t, 3)
	gap := bytes.Repeat([]byte{0x00}, 7)
	buf := fixture.Concat(certs[0], certs[1], gap, certs[2])

	c, err := Scan(buf, ScanOptions{})
	require.NoError(t, err)

	assertChain(t, c, certs[:2], 0)

	_, err = Scan(buf, ScanOptions{FailOnBreak: true})
	assert.True(t, errors.Is(err, ErrChainBroken), "%v", err)
}

func TestScanNestedHeaders(t *testing.T) {
	// a certificate whose contents hold a certificate like run
	nested := []byte{0x30, 0x82, 0x00, 0x02, 0x30, 0x82}
	tbs := fixture.Concat([]byte{0x30, 0x82, 0x00, 0x0a, 0x01, 0x02}, nested, []byte{0x03, 0x04})
	outer := fixture.Concat([]byte{0x30, 0x82, 0x00, byte(len(tbs))}, tbs)

	certs := [][]byte{outer, fixture.Certificate(t, "root CA")}
	buf := fixture.Concat(certs...)

	for _, opts := range []ScanOptions{{}, {FailOnBreak: true}} {
		c, err := Scan(buf, opts)
		require.NoError(t, err)

		assertChain(t, c, certs, 0)
	}
}

func TestScanRejectsImplausibleHeaders(t *testing.T) {
	for _, buf := range [][]byte{
		// negative length
		{0x30, 0x82, 0x80, 0x00, 0x30, 0x82, 0x00, 0x00},
		// no nested sequence
		{0x30, 0x82, 0x00, 0x04, 0x02, 0x01, 0x00, 0x00},
		// extends past the buffer
		{0x30, 0x82, 0x01, 0x00, 0x30, 0x82, 0x00, 0x00},
	} {
		_, err := Scan(buf, ScanOptions{})
		assert.True(t, errors.Is(err, ErrNoCertificatesFound), "% x", buf)
	}
}

func TestRootEmptyChain(t *testing.T) {
	_, err := Chain{}.Root()
	assert.True(t, errors.Is(err, ErrNoCertificatesFound))
}

func TestStrict(t *testing.T) {
	certs := fixture.Chain(t, 2)

	c, err := Structured(fixture.Concat(certs...), 0, uint32(len(certs[0])+len(certs[1])))
	require.NoError(t, err)
	assert.NoError(t, Strict(c))

	bad := c
	bad.Certificates = []Certificate{{Raw: []byte{0x30, 0x82, 0x00, 0x02, 0x02, 0x00}}}
	assert.True(t, errors.Is(Strict(bad), ErrInvalidDER))

	truncated := c
	truncated.Certificates = []Certificate{{Raw: certs[0][:len(certs[0])-1]}}
	assert.True(t, errors.Is(Strict(truncated), ErrInvalidDER))
}
