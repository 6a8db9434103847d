// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package debdata implements IO routines for reading the wire-level chunks
// of the deb container format: the "debian-binary" version marker, and the
// (possibly compressed) tar members holding control data and payload files.
package debdata
