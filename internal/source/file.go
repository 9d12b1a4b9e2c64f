// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package source

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// Path enumerates a file, every regular file under a directory, or the
// contents of zip archives or FAT images.
type Path struct {
	Path string
	// FAT treats files as FAT partition images.
	FAT bool
	// Archives expands zip archives, rather than analyzing them as images.
	Archives bool
}

var zipMagic = []byte("PK\x03\x04")

// Inputs implements Source. Only a missing path or an interrupted walk fail
// the enumeration, files which cannot be enumerated are returned as inputs
// whose Load fails.
func (p *Path) Inputs(ctx context.Context) (inputs []Input, err error) {
	info, err := os.Stat(p.Path)

	if err != nil {
		return
	}

	if info.IsDir() {
		return p.walk(ctx)
	}

	return p.file(p.Path), nil
}

func (p *Path) file(path string) []Input {
	var inputs []Input
	var err error

	switch {
	case p.FAT:
		inputs, err = FAT(path)
	case p.Archives && isZip(path):
		inputs, err = Zip(path)
	default:
		return []Input{File(path)}
	}

	if err != nil {
		return []Input{failed(path, err)}
	}

	return inputs
}

func (p *Path) walk(ctx context.Context) (inputs []Input, err error) {
	err = filepath.WalkDir(p.Path, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if d == nil {
				return err
			}

			// unreadable directory
			inputs = append(inputs, failed(path, err))

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		inputs = append(inputs, p.file(path)...)

		return nil
	})

	if err != nil {
		return nil, errors.Wrap(err, p.Path)
	}

	sort.SliceStable(inputs, func(i, j int) bool {
		return inputs[i].Name < inputs[j].Name
	})

	return
}

// File returns a file input.
func File(path string) Input {
	return Input{
		Name: path,
		Load: func() ([]byte, error) {
			return os.ReadFile(path)
		},
	}
}

func isZip(path string) bool {
	f, err := os.Open(path)

	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, len(zipMagic))

	if _, err = io.ReadFull(f, magic); err != nil {
		return false
	}

	return bytes.Equal(magic, zipMagic)
}
