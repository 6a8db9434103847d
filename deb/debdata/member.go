// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debdata

import (
	"bytes"
	"io"

	"go.chromium.org/luci/common/errors"
)

// sniffLen is how many bytes of a member DetectStrategy implementations may
// inspect. Enough to cover the tar magic at offset 257 with room to spare.
const sniffLen = 1024

// MemberReader wraps a container member with the decompressor chosen by
// detect, producing a continuous tar stream.
//
// It consumes up to sniffLen bytes of r to give the strategy something to
// sniff, then chains those bytes back in front of the remainder, so the
// decompressor sees the member from its first byte.
func MemberReader(name string, r io.Reader, detect DetectStrategy) (io.ReadCloser, error) {
	prefix := make([]byte, sniffLen)
	n, err := io.ReadFull(r, prefix)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, errors.Annotate(err, "sniffing member %q", name).Err()
	}
	prefix = prefix[:n]

	format := detect(name, prefix)
	if err := format.Valid(); err != nil {
		return nil, errors.Annotate(err, "member %q", name).Err()
	}

	ret, err := format.Reader(io.MultiReader(bytes.NewReader(prefix), r))
	if err != nil {
		return nil, errors.Annotate(err, "opening %s member %q", format, name).Err()
	}
	return ret, nil
}
