// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package debdata

import (
	"io"
	"strconv"

	"go.chromium.org/luci/common/errors"
)

// MarkerName is the name of the ar member holding the container format
// version. It must be the first member of the archive.
const MarkerName = "debian-binary"

// Major is the only container format major version this library reads.
const Major uint32 = 2

// ErrInvalidVersion is returned when the version marker does not read as
// "2.<digits>\n".
var ErrInvalidVersion = errors.New("invalid deb format version")

// maxMinorDigits bounds the digit scan; deb minor versions have never
// needed more than one digit.
const maxMinorDigits = 8

// Version is the container format version declared by the debian-binary
// member.
type Version struct {
	Major uint32
	Minor uint32
}

func (v Version) String() string {
	return strconv.FormatUint(uint64(v.Major), 10) + "." +
		strconv.FormatUint(uint64(v.Minor), 10)
}

// ReadVersion reads the contents of the debian-binary member and checks
// that it declares a 2.x format version.
//
// The contents must be the literal bytes "2." followed by ASCII digits and
// a newline. Anything after the newline is left unread and ignored.
func ReadVersion(r io.Reader) (v Version, err error) {
	buf := make([]byte, 2)
	if _, err = io.ReadFull(r, buf); err != nil {
		err = errors.Annotate(err, "reading version marker").Err()
		return
	}
	if string(buf) != "2." {
		err = errors.Annotate(ErrInvalidVersion, "marker begins %q", buf).Err()
		return
	}

	br := byteReader{Reader: r}
	digits := make([]byte, 0, maxMinorDigits)
	for {
		var b byte
		if b, err = br.ReadByte(); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = errors.Annotate(ErrInvalidVersion, "marker ends before newline").Err()
			} else {
				err = errors.Annotate(err, "reading version marker").Err()
			}
			return
		}
		if b == '\n' {
			break
		}
		if b < '0' || b > '9' {
			err = errors.Annotate(ErrInvalidVersion, "non-digit 0x%02x in minor version", b).Err()
			return
		}
		if len(digits) == maxMinorDigits {
			err = errors.Annotate(ErrInvalidVersion, "minor version too long").Err()
			return
		}
		digits = append(digits, b)
	}

	minor, err := strconv.ParseUint(string(digits), 10, 32)
	if err != nil {
		err = errors.Annotate(ErrInvalidVersion, "minor version %q", digits).Err()
		return
	}

	v = Version{Major: Major, Minor: uint32(minor)}
	return
}
