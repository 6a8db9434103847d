// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deb

import "go.chromium.org/luci/common/errors"

// Error kinds reported while walking the container. Each is matchable with
// errors.Is; call sites annotate them with position context. Format-level
// kinds live alongside the code that detects them: debdata.ErrInvalidVersion,
// debdata.ErrUnknownFormat, and the control package's errors.
var (
	// ErrMissingDebianBinary means the container is empty or its first
	// member is not "debian-binary".
	ErrMissingDebianBinary = errors.New("missing debian-binary member")

	// ErrMissingControlArchive means the container has no control.tar
	// member in the second position.
	ErrMissingControlArchive = errors.New("missing control archive member")

	// ErrMissingDataArchive means the container has no data.tar member in
	// the third position.
	ErrMissingDataArchive = errors.New("missing data archive member")

	// ErrControlAlreadyRead means the control archive was already consumed
	// and, the source being forward-only, cannot be read again.
	ErrControlAlreadyRead = errors.New("control archive already read")

	// ErrDataAlreadyRead means the data archive was already consumed and
	// cannot be read again.
	ErrDataAlreadyRead = errors.New("data archive already read")
)
