// Package archive packs a build output directory into a gzipped tarball.
package archive

import (
	"os"
	"path/filepath"
	"strings"

	slug "github.com/hashicorp/go-slug"

	foundationerrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

// Result describes a written archive.
type Result struct {
	Path  string
	Files []string
	Size  int64
}

// Pack archives dir into dest. The archive is written next to dest and
// renamed into place so readers never see a partial file. Symlinks leaving
// dir are rejected.
func Pack(dir, dest string) (*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(absDir); err != nil || !st.IsDir() {
		return nil, foundationerrors.NotFoundError("output directory does not exist; run a build first").
			WithContext("path", dir).
			Build()
	}
	if rel, err := filepath.Rel(absDir, absDest); err == nil && !strings.HasPrefix(rel, "..") {
		return nil, foundationerrors.ValidationError("archive must be written outside the output directory").
			WithContext("path", dest).
			Build()
	}

	packer, err := slug.NewPacker()
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "cannot create packer").Build()
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0o750); err != nil {
		return nil, fsError(err, dest)
	}
	tmp := absDest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fsError(err, dest)
	}
	meta, err := packer.Pack(absDir, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot pack output").
			WithContext("path", dir).
			Build()
	}
	if err := os.Rename(tmp, absDest); err != nil {
		_ = os.Remove(tmp)
		return nil, fsError(err, dest)
	}
	return &Result{Path: absDest, Files: meta.Files, Size: meta.Size}, nil
}

// Unpack extracts an archive created by Pack into dst.
func Unpack(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fsError(err, src)
	}
	defer func() { _ = f.Close() }()
	if err := slug.Unpack(f, dst); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "cannot unpack archive").
			WithContext("path", src).
			Build()
	}
	return nil
}

func fsError(err error, p string) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "archive i/o failed").
		WithContext("path", p).
		Build()
}
