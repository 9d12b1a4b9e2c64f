// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package source

import (
	"archive/zip"
	"io"
	"path"

	"github.com/pkg/errors"
)

// Zip returns an input for every file of a zip archive, such as a firmware
// update package. Entries are read on Load.
func Zip(archive string) (inputs []Input, err error) {
	reader, err := zip.OpenReader(archive)

	if err != nil {
		return nil, errors.Wrap(err, "could not open archive")
	}
	defer reader.Close()

	for i, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}

		i := i

		inputs = append(inputs, Input{
			Name: archive + ":" + f.Name,
			Load: func() ([]byte, error) {
				return zipEntry(archive, i)
			},
		})
	}

	return
}

func zipEntry(archive string, i int) (buf []byte, err error) {
	reader, err := zip.OpenReader(archive)

	if err != nil {
		return nil, errors.Wrap(err, "could not open archive")
	}
	defer reader.Close()

	if i >= len(reader.File) {
		return nil, errors.Errorf("archive entry %d not found", i)
	}

	f := reader.File[i]

	if buf, err = open(f); err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path.Join(archive, f.Name))
	}

	return
}

func open(f *zip.File) (buf []byte, err error) {
	r, err := f.Open()

	if err != nil {
		return
	}
	defer r.Close()

	return io.ReadAll(r)
}
