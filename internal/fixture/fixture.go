// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fixture builds synthetic signed images, certificates and ELF files
// for tests.
package fixture

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"math/big"
	"testing"
	"time"
)

// Certificate returns a self-signed DER certificate whose encoding, as well
// as its TBSCertificate, uses a two bytes long form length.
func Certificate(t testing.TB, cn string) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)

	if err != nil {
		t.Fatal(err)
	}

	name := pkix.Name{
		Organization:       []string{"F-Secure Foundry test signing authority"},
		OrganizationalUnit: []string{"Root Key Hash reader test fixtures"},
		CommonName:         cn,
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               name,
		Issuer:                name,
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).AddDate(30, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)

	if err != nil {
		t.Fatal(err)
	}

	if len(der) < 8 || der[0] != 0x30 || der[1] != 0x82 || der[4] != 0x30 || der[5] != 0x82 {
		t.Fatalf("unexpected certificate encoding % x", der[:8])
	}

	return der
}

// Chain returns n certificates, leaf first.
func Chain(t testing.TB, n int) (certs [][]byte) {
	t.Helper()

	names := []string{"leaf", "attestation CA", "root CA"}

	for i := 0; i < n; i++ {
		certs = append(certs, Certificate(t, names[i%len(names)]))
	}

	return
}

// Concat joins byte slices.
func Concat(parts ...[]byte) (buf []byte) {
	for _, p := range parts {
		buf = append(buf, p...)
	}

	return
}

// Image describes a Short header signed image.
type Image struct {
	Version      uint32
	Code         []byte
	Signature    []byte
	Certificates [][]byte

	// Padding is appended to the certificate area and accounted in its size.
	Padding []byte

	// SizeDelta is added to the declared certificate area size.
	SizeDelta int
}

// Short header layout
const (
	headerOffset = 8
	imageOffset  = 0x28
	padding      = 0x80
	certPadding  = 0xf0
)

// CertificatesOffset returns where the certificate area starts.
func (img Image) CertificatesOffset() int {
	return img.codeOffset() + len(img.Code) + len(img.Signature) + certPadding
}

func (img Image) codeOffset() int {
	if img.Version > 5 {
		return imageOffset + padding
	}

	return imageOffset
}

// Bytes returns the image encoding.
func (img Image) Bytes() []byte {
	certs := Concat(img.Certificates...)
	area := Concat(certs, img.Padding)

	buf := make([]byte, img.CertificatesOffset())
	binary.LittleEndian.PutUint32(buf[4:], img.Version)

	fields := []uint32{
		0,          // image offset, use default
		0x80000000, // image address
		uint32(len(buf) + len(area) - img.codeOffset()),
		uint32(len(img.Code)),
		0xffffffff, // signature address, follows code
		uint32(len(img.Signature)),
		0xffffffff, // certificates address, follows signature
		uint32(len(area) + img.SizeDelta),
	}

	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[headerOffset+i*4:], f)
	}

	off := img.codeOffset()
	off += copy(buf[off:], img.Code)
	off += copy(buf[off:], img.Signature)

	for i := off; i < len(buf); i++ {
		buf[i] = 0xff
	}

	return append(buf, area...)
}

// Segment describes an ELF32 program header and its file contents.
type Segment struct {
	Type  uint32
	Flags uint32
	Data  []byte

	// MemSize defaults to len(Data) when zero.
	MemSize uint32
}

// Processor specific flags of the segment carrying the signed blob.
const SigningSegmentFlags = 0x02200000

// ELF returns a little-endian ELF32 executable with the given program
// headers and no sections.
func ELF(segments ...Segment) []byte {
	const (
		ehsize    = 52
		phentsize = 32
	)

	buf := make([]byte, ehsize+phentsize*len(segments))

	copy(buf, []byte{0x7f, 'E', 'L', 'F', 1, 1, 1})
	binary.LittleEndian.PutUint16(buf[16:], 2)  // ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:], 40) // EM_ARM
	binary.LittleEndian.PutUint32(buf[20:], 1)
	binary.LittleEndian.PutUint32(buf[28:], ehsize)
	binary.LittleEndian.PutUint16(buf[40:], ehsize)
	binary.LittleEndian.PutUint16(buf[42:], phentsize)
	binary.LittleEndian.PutUint16(buf[44:], uint16(len(segments)))
	binary.LittleEndian.PutUint16(buf[46:], 40)

	for i, s := range segments {
		ph := buf[ehsize+i*phentsize:]
		mem := s.MemSize

		if mem == 0 {
			mem = uint32(len(s.Data))
		}

		binary.LittleEndian.PutUint32(ph[0:], s.Type)
		binary.LittleEndian.PutUint32(ph[4:], uint32(len(buf)))
		binary.LittleEndian.PutUint32(ph[16:], uint32(len(s.Data)))
		binary.LittleEndian.PutUint32(ph[20:], mem)
		binary.LittleEndian.PutUint32(ph[24:], s.Flags)
		binary.LittleEndian.PutUint32(ph[28:], 4)

		buf = append(buf, s.Data...)
	}

	return buf
}
