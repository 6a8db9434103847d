// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debdata

import (
	"bytes"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"go.chromium.org/luci/common/errors"
)

// Format indicates how a tar member of the deb container is encoded.
type Format byte

// These are the member encodings deb containers can use.
const (
	FormatUnknown Format = iota
	FormatTar
	FormatGzip
	FormatXz
	FormatBzip2
	FormatZstd
)

// ErrUnknownFormat is returned when a member's encoding cannot be
// recognized. This is distinct from a missing member: the member exists but
// its bytes are not in any supported format.
var ErrUnknownFormat = errors.New("unknown member format")

func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatGzip:
		return "gzip"
	case FormatXz:
		return "xz"
	case FormatBzip2:
		return "bzip2"
	case FormatZstd:
		return "zstd"
	}
	return "unknown"
}

// Valid returns a nil err iff this Format is a supported encoding.
func (f Format) Valid() error {
	switch f {
	case FormatTar, FormatGzip, FormatXz, FormatBzip2, FormatZstd:
		return nil
	}
	return errors.Annotate(ErrUnknownFormat, "format 0x%x", byte(f)).Err()
}

// Reader returns a new decompressing reader for the given format. The
// returned reader yields a plain tar stream.
func (f Format) Reader(r io.Reader) (io.ReadCloser, error) {
	switch f {
	case FormatTar:
		return readCloseHook{r, nil}, nil
	case FormatGzip:
		return gzip.NewReader(r)
	case FormatXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return readCloseHook{xr, nil}, nil
	case FormatBzip2:
		return bzip2.NewReader(r, nil)
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	}
	return nil, f.Valid()
}

// A DetectStrategy decides the encoding of a container member from its
// declared name and the first bytes of its contents. A strategy may use
// either input and must be applied uniformly to both the control and data
// members of one container.
type DetectStrategy func(name string, prefix []byte) Format

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicBzip2 = []byte{'B', 'Z', 'h'}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// tar has no leading magic; "ustar" sits at offset 257 in the first header
// block (GNU tars write "ustar " there instead).
const tarMagicOffset = 257

func isTar(prefix []byte) bool {
	if len(prefix) < tarMagicOffset+5 {
		return false
	}
	return string(prefix[tarMagicOffset:tarMagicOffset+5]) == "ustar"
}

// DetectContent recognizes a member's encoding by sniffing magic bytes,
// ignoring the member name. This is the default strategy.
func DetectContent(name string, prefix []byte) Format {
	switch {
	case bytes.HasPrefix(prefix, magicGzip):
		return FormatGzip
	case bytes.HasPrefix(prefix, magicXz):
		return FormatXz
	case bytes.HasPrefix(prefix, magicBzip2):
		return FormatBzip2
	case bytes.HasPrefix(prefix, magicZstd):
		return FormatZstd
	case isTar(prefix):
		return FormatTar
	}
	return FormatUnknown
}

// DetectName recognizes a member's encoding from its name suffix, ignoring
// the member contents.
func DetectName(name string, prefix []byte) Format {
	switch {
	case strings.HasSuffix(name, ".tar"):
		return FormatTar
	case strings.HasSuffix(name, ".tar.gz"):
		return FormatGzip
	case strings.HasSuffix(name, ".tar.xz"):
		return FormatXz
	case strings.HasSuffix(name, ".tar.bz2"):
		return FormatBzip2
	case strings.HasSuffix(name, ".tar.zst"):
		return FormatZstd
	}
	return FormatUnknown
}
