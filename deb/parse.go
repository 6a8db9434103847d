// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deb

import (
	"context"
	"io"

	"go.chromium.org/luci/common/errors"

	"github.com/schultetwin1/debpkg/deb/control"
)

// Parse opens a deb container and reads its metadata in one step: the
// version marker is validated and the control paragraph is extracted and
// parsed. The data member is left unread, ready for ListData or UnpackTo.
func Parse(ctx context.Context, r io.Reader, options ...OpenOption) (*Package, error) {
	pkg, err := Open(r, options...)
	if err != nil {
		return nil, err
	}

	archive, err := pkg.ControlArchive()
	if err != nil {
		return nil, err
	}

	ctrl, err := control.Extract(ctx, archive)
	if err != nil {
		return nil, err
	}
	pkg.ctrl = ctrl

	return pkg, nil
}

// Control returns the parsed control paragraph, or nil if the Package was
// created with Open instead of Parse.
//
// The field accessors below delegate to it. On an Open'd Package they
// return zero values instead of panicking.
func (p *Package) Control() *control.Control {
	return p.ctrl
}

// Name returns the package name from the control file, or "" if the
// Package was created with Open instead of Parse.
func (p *Package) Name() string {
	if p.ctrl == nil {
		return ""
	}
	return p.ctrl.Name()
}

// Version returns the package version from the control file, or "" if the
// Package was created with Open instead of Parse.
func (p *Package) Version() string {
	if p.ctrl == nil {
		return ""
	}
	return p.ctrl.Version()
}

// Get returns the value of the named control field, matched
// case-insensitively.
func (p *Package) Get(tag string) (string, bool) {
	if p.ctrl == nil {
		return "", false
	}
	return p.ctrl.Get(tag)
}

// ShortDescription returns the first line of the Description field, if
// present.
func (p *Package) ShortDescription() (string, bool) {
	if p.ctrl == nil {
		return "", false
	}
	return p.ctrl.ShortDescription()
}

// LongDescription returns the remaining lines of the Description field, if
// there are any.
func (p *Package) LongDescription() (string, bool) {
	if p.ctrl == nil {
		return "", false
	}
	return p.ctrl.LongDescription()
}

// LoopTags invokes cb for every control field tag in insertion order.
func (p *Package) LoopTags(cb func(tag string) error) error {
	if p.ctrl == nil {
		return nil
	}
	return p.ctrl.LoopTags(cb)
}

// LoopFields invokes cb for every control field and its value in insertion
// order.
func (p *Package) LoopFields(cb func(tag, value string) error) error {
	if p.ctrl == nil {
		return nil
	}
	return p.ctrl.LoopFields(cb)
}

// ListData consumes the data member and returns the paths of the payload
// files, as recorded in the tar headers.
//
// Like DataArchive, it can run at most once per Package.
func (p *Package) ListData() (paths []string, err error) {
	archive, err := p.DataArchive()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := p.closeMember(); cerr != nil && err == nil {
			paths, err = nil, errors.Annotate(cerr, "closing data member").Err()
		}
	}()

	for {
		hdr, herr := archive.Next()
		if herr == io.EOF {
			return paths, nil
		}
		if herr != nil {
			return nil, errors.Annotate(herr, "reading data archive").Err()
		}
		paths = append(paths, hdr.Name)
	}
}
