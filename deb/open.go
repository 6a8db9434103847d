// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deb

import (
	"archive/tar"
	"io"
	"strings"

	"github.com/blakesmith/ar"

	"go.chromium.org/luci/common/errors"

	"github.com/schultetwin1/debpkg/deb/control"
	"github.com/schultetwin1/debpkg/deb/debdata"
)

// readState tracks how far a Package has read through the container. The
// source is forward-only, so reads only ever move this forward.
type readState int

const (
	stateVersionChecked readState = iota
	stateControlRead
	stateDataRead
)

// Package is an opened deb container. It reads the underlying source
// strictly forward: the version marker is consumed by Open, and each of the
// two tar members can be consumed exactly once afterwards.
//
// A Package must not be shared between goroutines.
type Package struct {
	state readState

	version debdata.Version

	// The ar archive in which the package members are contained.
	archive *ar.Reader

	// Decompressor for the member currently being read, if any.
	member io.ReadCloser

	// Parsed control paragraph; only set by Parse, not Open.
	ctrl *control.Control

	didClose bool

	opts openOptionData
}

type openOptionData struct {
	detect           debdata.DetectStrategy
	unpackBufferSize int
}

// OpenOption functions can be supplied to Open and Parse.
type OpenOption func(*openOptionData)

// WithDetectStrategy dictates how the encoding of the control and data
// members is recognized. The default is debdata.DetectContent.
func WithDetectStrategy(s debdata.DetectStrategy) OpenOption {
	return func(o *openOptionData) {
		o.detect = s
	}
}

// WithUnpackBufferSize is an OpenOption factory which indicates the number
// of bytes that UnpackTo will attempt to decompress ahead of time. Default
// if unspecified is 16MB.
func WithUnpackBufferSize(n int) OpenOption {
	return func(o *openOptionData) {
		o.unpackBufferSize = n
	}
}

// Open opens a deb container from the given reader.
//
// It consumes the first container member, requiring it to be the
// debian-binary version marker declaring a 2.x format. The control and data
// members are left unread until requested.
func Open(r io.Reader, options ...OpenOption) (*Package, error) {
	opts := openOptionData{
		detect:           debdata.DetectContent,
		unpackBufferSize: 16 * 1024 * 1024, // 16MB
	}
	for _, o := range options {
		o(&opts)
	}

	archive := ar.NewReader(r)

	hdr, err := archive.Next()
	if err == io.EOF {
		return nil, errors.Annotate(ErrMissingDebianBinary, "container is empty").Err()
	}
	if err != nil {
		return nil, errors.Annotate(err, "reading container").Err()
	}
	if name := memberName(hdr); name != debdata.MarkerName {
		return nil, errors.Annotate(ErrMissingDebianBinary, "first member is %q", name).Err()
	}

	version, err := debdata.ReadVersion(archive)
	if err != nil {
		return nil, err
	}

	return &Package{
		state:   stateVersionChecked,
		version: version,
		archive: archive,
		opts:    opts,
	}, nil
}

// FormatVersion returns the container format version declared by the
// debian-binary member.
func (p *Package) FormatVersion() debdata.Version {
	return p.version
}

// ControlArchive consumes the second container member and returns it as
// a tar stream.
//
// It can be called at most once, and only before the data member has been
// requested.
func (p *Package) ControlArchive() (*tar.Reader, error) {
	if p.state != stateVersionChecked {
		return nil, ErrControlAlreadyRead
	}
	rc, err := p.nextMember("control.tar", ErrMissingControlArchive)
	if err != nil {
		return nil, err
	}
	p.state = stateControlRead
	return tar.NewReader(rc), nil
}

// DataArchive consumes the third container member and returns it as a tar
// stream. If the control member was never requested it is skipped over,
// since the source cannot rewind.
//
// It can be called at most once.
func (p *Package) DataArchive() (*tar.Reader, error) {
	rc, err := p.nextData()
	if err != nil {
		return nil, err
	}
	return tar.NewReader(rc), nil
}

// Close releases the decompressor for whichever member is currently open.
// It does not close the underlying source, which the caller owns.
func (p *Package) Close() error {
	if p.didClose {
		return nil
	}
	p.didClose = true
	return p.closeMember()
}

func (p *Package) nextData() (io.ReadCloser, error) {
	if p.state == stateVersionChecked {
		if _, err := p.ControlArchive(); err != nil {
			return nil, err
		}
	}
	if p.state != stateControlRead {
		return nil, ErrDataAlreadyRead
	}
	rc, err := p.nextMember("data.tar", ErrMissingDataArchive)
	if err != nil {
		return nil, err
	}
	p.state = stateDataRead
	return rc, nil
}

// nextMember advances to the next container member, requires its name to
// begin with prefix, and wraps it with the detected decompressor. Any
// member still open is released first; ar.Next skips its remaining bytes.
func (p *Package) nextMember(prefix string, missing error) (io.ReadCloser, error) {
	if err := p.closeMember(); err != nil {
		return nil, err
	}

	hdr, err := p.archive.Next()
	if err == io.EOF {
		return nil, missing
	}
	if err != nil {
		return nil, errors.Annotate(err, "reading container").Err()
	}
	if name := memberName(hdr); !strings.HasPrefix(name, prefix) {
		return nil, errors.Annotate(missing, "found member %q", name).Err()
	}

	rc, err := debdata.MemberReader(memberName(hdr), p.archive, p.opts.detect)
	if err != nil {
		return nil, err
	}
	p.member = rc
	return rc, nil
}

func (p *Package) closeMember() error {
	if p.member == nil {
		return nil
	}
	err := p.member.Close()
	p.member = nil
	return err
}

// memberName normalizes an ar member name. GNU ar appends a "/" terminator
// to short names.
func memberName(hdr *ar.Header) string {
	return strings.TrimSuffix(strings.TrimSpace(hdr.Name), "/")
}
