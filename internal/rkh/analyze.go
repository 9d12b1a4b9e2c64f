// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package rkh

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/f-secure-foundry/rkh-reader/internal/chain"
	"github.com/f-secure-foundry/rkh-reader/internal/elfseg"
	"github.com/f-secure-foundry/rkh-reader/internal/image"
)

// Pipeline selects how the certificate chain is recovered from an input.
type Pipeline int

const (
	// Auto selects ELF for ELF files and Raw otherwise.
	Auto Pipeline = iota
	// Raw parses the header at the configured offset of a partition image.
	Raw
	// ELF parses the header of the blob carried by the ELF signing segment.
	ELF
	// Scan searches the whole input for the certificate chain.
	Scan
)

func (p Pipeline) String() string {
	switch p {
	case Auto:
		return "auto"
	case Raw:
		return "raw"
	case ELF:
		return "elf"
	case Scan:
		return "scan"
	default:
		return fmt.Sprintf("pipeline(%d)", int(p))
	}
}

// DefaultAlgorithm returns the digest algorithm conventionally used with a
// pipeline.
func (p Pipeline) DefaultAlgorithm() Algorithm {
	if p == Scan {
		return SHA384
	}

	return SHA256
}

// ParsePipeline parses a pipeline name.
func ParsePipeline(s string) (Pipeline, error) {
	for _, p := range []Pipeline{Auto, Raw, ELF, Scan} {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}

	return 0, errors.Errorf("invalid pipeline %q", s)
}

// Analyzer computes the Root Key Hash of firmware images.
type Analyzer struct {
	// Pipeline selects the chain recovery method.
	Pipeline Pipeline
	// Algorithm overrides the pipeline default digest algorithm.
	Algorithm *Algorithm
	// Offset is the blob start for the Raw pipeline.
	Offset uint32
	// Scan configures the Scan pipeline.
	Scan chain.ScanOptions
	// Strict enables DER checking of recovered certificates.
	Strict bool

	Log logrus.FieldLogger
}

// Report represents the result of a successful analysis.
type Report struct {
	Name      string
	Pipeline  Pipeline
	Algorithm Algorithm
	// Layout is nil for the Scan pipeline.
	Layout *image.Layout
	Chain  chain.Chain
	Hash   Hash
}

func (a *Analyzer) log() logrus.FieldLogger {
	if a.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		return l
	}

	return a.Log
}

func (a *Analyzer) pipeline(buf []byte) Pipeline {
	if a.Pipeline != Auto {
		return a.Pipeline
	}

	if elfseg.IsELF(buf) {
		return ELF
	}

	return Raw
}

// Analyze computes the Root Key Hash of buf, name is used for reporting.
func (a *Analyzer) Analyze(name string, buf []byte) (r *Report, err error) {
	r = &Report{
		Name:     name,
		Pipeline: a.pipeline(buf),
	}

	r.Algorithm = r.Pipeline.DefaultAlgorithm()

	if a.Algorithm != nil {
		r.Algorithm = *a.Algorithm
	}

	log := a.log().WithFields(logrus.Fields{
		"name":     name,
		"pipeline": r.Pipeline,
	})

	switch r.Pipeline {
	case Raw:
		r.Layout, r.Chain, err = structured(buf, a.Offset, log)
	case ELF:
		var blob []byte

		if blob, err = elfseg.Extract(buf); err != nil {
			break
		}

		log.Debugf("signing segment: %d bytes", len(blob))
		r.Layout, r.Chain, err = structured(blob, 0, log)
	case Scan:
		r.Chain, err = chain.Scan(buf, a.Scan)
	default:
		err = errors.Errorf("unsupported pipeline %v", r.Pipeline)
	}

	if err != nil {
		return nil, errors.Wrap(err, name)
	}

	for _, cert := range r.Chain.Certificates {
		log.Debugf("certificate %d at %#x: %x", cert.Position, cert.Offset, sha256.Sum256(cert.Raw))
	}

	if a.Strict {
		if err = chain.Strict(r.Chain); err != nil {
			return nil, errors.Wrap(err, name)
		}
	}

	if r.Hash, err = Compute(r.Chain, r.Algorithm); err != nil {
		return nil, errors.Wrap(err, name)
	}

	return
}

func structured(buf []byte, off uint32, log logrus.FieldLogger) (*image.Layout, chain.Chain, error) {
	l, err := image.Locate(buf, off)

	if err != nil {
		return nil, chain.Chain{}, err
	}

	log.WithFields(logrus.Fields{
		"variant": l.Variant,
		"version": l.Version,
	}).Debugf("image offset %#x, certificates offset %#x size %#x", l.ImageOffset, l.CertificatesOffset, l.CertificatesSize)

	c, err := chain.FromLayout(buf, l)

	return &l, c, err
}
