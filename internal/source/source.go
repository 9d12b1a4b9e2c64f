// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package source enumerates the firmware images to analyze: local files and
// directories, zip archives, FAT partition images and GitHub releases.
package source

import (
	"context"
)

// Input represents a named firmware image whose contents are read on demand.
type Input struct {
	Name string
	Load func() ([]byte, error)
}

// Source enumerates inputs.
type Source interface {
	Inputs(ctx context.Context) ([]Input, error)
}

// failed returns an input which could not be enumerated, its Load reports
// err so that the failure is reported along with the other inputs.
func failed(name string, err error) Input {
	return Input{
		Name: name,
		Load: func() ([]byte, error) {
			return nil, err
		},
	}
}
