// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package source

import (
	"archive/zip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v34/github"
	"github.com/mitchellh/go-fs"
	"github.com/mitchellh/go-fs/fat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, inputs []Input) map[string]string {
	t.Helper()

	m := make(map[string]string)

	for _, in := range inputs {
		buf, err := in.Load()
		require.NoError(t, err)
		m[in.Name] = string(buf)
	}

	return m
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)

	for name, body := range files {
		f, err := w.Create(name)
		require.NoError(t, err)

		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
}

func TestPathFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sbl1.mbn")
	require.NoError(t, os.WriteFile(p, []byte("image"), 0600))

	inputs, err := (&Path{Path: p}).Inputs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{p: "image"}, load(t, inputs))
}

func TestPathMissing(t *testing.T) {
	_, err := (&Path{Path: filepath.Join(t.TempDir(), "missing")}).Inputs(context.Background())
	assert.True(t, os.IsNotExist(err), "%v", err)
}

func TestPathDirectory(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.bin"), []byte("z"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "tz.mbn"), []byte("tz"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "hyp.mbn"), []byte("hyp"), 0600))
	writeZip(t, filepath.Join(dir, "a", "update.zip"), map[string]string{"boot/xbl.elf": "xbl"})

	inputs, err := (&Path{Path: dir}).Inputs(context.Background())
	require.NoError(t, err)

	var names []string

	for _, in := range inputs {
		names = append(names, strings.TrimPrefix(filepath.ToSlash(in.Name), filepath.ToSlash(dir)))
	}

	assert.Equal(t, []string{"/a/b/tz.mbn", "/a/hyp.mbn", "/a/update.zip", "/z.bin"}, names)

	inputs, err = (&Path{Path: dir, Archives: true}).Inputs(context.Background())
	require.NoError(t, err)

	m := load(t, inputs)
	assert.Equal(t, "xbl", m[filepath.Join(dir, "a", "update.zip")+":boot/xbl.elf"])
	assert.Len(t, m, 4)
}

func TestPathDirectoryCanceled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("a"), 0600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Path{Path: dir}).Inputs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "update.zip")
	writeZip(t, p, map[string]string{
		"sbl1.mbn":    "sbl1",
		"rpm/rpm.mbn": "rpm",
	})

	inputs, err := (&Path{Path: p, Archives: true}).Inputs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		p + ":sbl1.mbn":    "sbl1",
		p + ":rpm/rpm.mbn": "rpm",
	}, load(t, inputs))

	// not expanded
	inputs, err = (&Path{Path: p}).Inputs(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, p, inputs[0].Name)
}

func TestPathCorruptArchives(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sbl1.mbn"), []byte("sbl1"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truncated.zip"), []byte("PK\x03\x04truncated"), 0600))

	out, err := os.Create(filepath.Join(dir, "update.zip"))
	require.NoError(t, err)

	w := zip.NewWriter(out)

	f, err := w.CreateRaw(&zip.FileHeader{
		Name:               "bad.mbn",
		Method:             zip.Store,
		CRC32:              0xdeadbeef,
		CompressedSize64:   4,
		UncompressedSize64: 4,
	})
	require.NoError(t, err)

	_, err = f.Write([]byte("bad!"))
	require.NoError(t, err)

	f, err = w.Create("good.mbn")
	require.NoError(t, err)

	_, err = f.Write([]byte("good"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	inputs, err := (&Path{Path: dir, Archives: true}).Inputs(context.Background())
	require.NoError(t, err)

	loads := make(map[string]error)
	contents := make(map[string]string)

	for _, in := range inputs {
		buf, err := in.Load()
		name := strings.TrimPrefix(filepath.ToSlash(in.Name), filepath.ToSlash(dir)+"/")

		loads[name] = err
		contents[name] = string(buf)
	}

	require.Len(t, loads, 4)

	assert.NoError(t, loads["sbl1.mbn"])
	assert.Equal(t, "sbl1", contents["sbl1.mbn"])

	assert.ErrorIs(t, loads["truncated.zip"], zip.ErrFormat)

	assert.ErrorIs(t, loads["update.zip:bad.mbn"], zip.ErrChecksum)

	assert.NoError(t, loads["update.zip:good.mbn"])
	assert.Equal(t, "good", contents["update.zip:good.mbn"])
}

func TestPathInvalidFAT(t *testing.T) {
	p := filepath.Join(t.TempDir(), "NON-HLOS.bin")
	require.NoError(t, os.WriteFile(p, []byte("not a FAT"), 0600))

	inputs, err := (&Path{Path: p, FAT: true}).Inputs(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	assert.Equal(t, p, inputs[0].Name)

	_, err = inputs[0].Load()
	assert.Error(t, err)
}

func TestFAT(t *testing.T) {
	p := filepath.Join(t.TempDir(), "NON-HLOS.bin")

	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(1440*1024))

	dev, err := fs.NewFileDisk(f)
	require.NoError(t, err)

	require.NoError(t, fat.FormatSuperFloppy(dev, &fat.SuperFloppyConfig{
		FATType: fat.FAT12,
		Label:   "MODEM",
		OEMName: "MODEM",
	}))

	fsys, err := fat.New(dev)
	require.NoError(t, err)

	root, err := fsys.RootDir()
	require.NoError(t, err)

	entry, err := root.AddFile("MODEM.MBN")
	require.NoError(t, err)

	file, err := entry.File()
	require.NoError(t, err)

	_, err = file.Write([]byte("signed modem image"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	inputs, err := (&Path{Path: p, FAT: true}).Inputs(context.Background())
	require.NoError(t, err)

	var found *Input

	for i := range inputs {
		if strings.EqualFold(p+":MODEM.MBN", inputs[i].Name) {
			found = &inputs[i]
		}
	}

	require.NotNil(t, found, "%v", inputs)

	buf, err := found.Load()
	require.NoError(t, err)
	assert.Equal(t, "signed modem image", string(buf))
}

func TestGitHub(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/repos/vendor/firmware/releases/tags/v1.2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v1.2","assets":[`+
			`{"name":"xbl.elf","size":3,"browser_download_url":"%[1]s/dl/xbl.elf"},`+
			`{"name":"missing.mbn","browser_download_url":"%[1]s/dl/missing.mbn"}]}`, srv.URL)
	})

	mux.HandleFunc("/dl/xbl.elf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("xbl"))
	})

	client := github.NewClient(nil)
	client.BaseURL, _ = url.Parse(srv.URL + "/")

	g := &GitHub{Repository: "vendor/firmware", Release: "v1.2", Client: client}

	inputs, err := g.Inputs(context.Background())
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "github.com/vendor/firmware@v1.2/xbl.elf", inputs[0].Name)

	buf, err := inputs[0].Load()
	require.NoError(t, err)
	assert.Equal(t, "xbl", string(buf))

	_, err = inputs[1].Load()
	assert.Error(t, err)

	_, err = (&GitHub{Repository: "vendor", Client: client}).Inputs(context.Background())
	assert.Error(t, err)

	_, err = (&GitHub{Repository: "vendor/firmware", Release: "v9", Client: client}).Inputs(context.Background())
	assert.Error(t, err)
}
