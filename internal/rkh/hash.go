// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package rkh computes the Root Key Hash of signed firmware images, that is
// the digest of the root certificate of the chain appended to the image.
package rkh

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/f-secure-foundry/crucible/util"
	"github.com/pkg/errors"

	"github.com/f-secure-foundry/rkh-reader/internal/chain"
)

// Algorithm represents the root certificate digest algorithm.
type Algorithm int

const (
	SHA256 Algorithm = iota
	SHA384
)

func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case SHA384:
		return "sha384"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// Size returns the digest size in bytes.
func (a Algorithm) Size() int {
	switch a {
	case SHA384:
		return sha512.Size384
	default:
		return sha256.Size
	}
}

// ParseAlgorithm parses an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sha256", "sha-256":
		return SHA256, nil
	case "sha384", "sha-384":
		return SHA384, nil
	default:
		return 0, errors.Errorf("invalid hash algorithm %q", s)
	}
}

// Hash represents a Root Key Hash.
type Hash []byte

// Hex returns the hash as lowercase hexadecimal.
func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

func (h Hash) String() string {
	return strings.ToUpper(h.Hex())
}

// Fuse returns the hash in the order it reads back from little-endian fuse
// words.
func (h Hash) Fuse() Hash {
	return util.SwitchEndianness(append([]byte(nil), h...))
}

// Compute returns the digest of the root (last) certificate of c.
func Compute(c chain.Chain, alg Algorithm) (Hash, error) {
	root, err := c.Root()

	if err != nil {
		return nil, err
	}

	switch alg {
	case SHA256:
		sum := sha256.Sum256(root.Raw)
		return sum[:], nil
	case SHA384:
		sum := sha512.Sum384(root.Raw)
		return sum[:], nil
	default:
		return nil, errors.Errorf("unsupported algorithm %v", alg)
	}
}
