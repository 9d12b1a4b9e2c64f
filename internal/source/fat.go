// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package source

import (
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-fs"
	"github.com/mitchellh/go-fs/fat"
	"github.com/pkg/errors"
)

// FAT returns an input for every file of a FAT partition image, such as the
// firmware partition of a device dump holding signed ELF images. Files are
// read on Load.
func FAT(image string) (inputs []Input, err error) {
	img, err := os.Open(image)

	if err != nil {
		return
	}
	defer img.Close()

	root, err := fatRoot(img)

	if err != nil {
		return
	}

	walkFAT(image, root, nil, &inputs)

	return
}

func fatRoot(img *os.File) (fs.Directory, error) {
	dev, err := fs.NewFileDisk(img)

	if err != nil {
		return nil, errors.Wrap(err, "could not open FAT image")
	}

	f, err := fat.New(dev)

	if err != nil {
		return nil, errors.Wrap(err, "could not open FAT image")
	}

	root, err := f.RootDir()

	if err != nil {
		return nil, errors.Wrap(err, "could not read FAT root directory")
	}

	return root, nil
}

func fatName(image string, path []string) string {
	return image + ":" + strings.Join(path, "/")
}

func walkFAT(image string, dir fs.Directory, parent []string, inputs *[]Input) {
	for _, entry := range dir.Entries() {
		name := entry.Name()

		if name == "" || name == "." || name == ".." {
			continue
		}

		path := append(append([]string(nil), parent...), name)

		if entry.IsDir() {
			sub, err := entry.Dir()

			if err != nil {
				*inputs = append(*inputs, failed(fatName(image, path), err))
				continue
			}

			walkFAT(image, sub, path, inputs)
			continue
		}

		*inputs = append(*inputs, Input{
			Name: fatName(image, path),
			Load: func() ([]byte, error) {
				return readFAT(image, path)
			},
		})
	}
}

func readFAT(image string, path []string) (buf []byte, err error) {
	img, err := os.Open(image)

	if err != nil {
		return
	}
	defer img.Close()

	dir, err := fatRoot(img)

	if err != nil {
		return
	}

	for i, name := range path {
		entry := lookupFAT(dir, name)

		if entry == nil {
			return nil, errors.Errorf("%s not found", strings.Join(path[:i+1], "/"))
		}

		if i < len(path)-1 {
			if dir, err = entry.Dir(); err != nil {
				return
			}

			continue
		}

		file, err := entry.File()

		if err != nil {
			return nil, err
		}

		return io.ReadAll(file)
	}

	return nil, errors.New("empty FAT path")
}

func lookupFAT(dir fs.Directory, name string) fs.DirectoryEntry {
	for _, entry := range dir.Entries() {
		if entry.Name() == name {
			return entry
		}
	}

	return nil
}
