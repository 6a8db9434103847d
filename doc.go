// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package debpkg implements read-only parsing of binary Debian packages
// (.deb files). It never loads a whole package into memory: the package is
// consumed as a forward-only stream, so it works equally well on a file,
// a network body or a pipe.
//
// This library only reads packages. It does not write them, and it only
// accepts format version 2 of the deb container.
//
// A .deb file has a fairly basic format:
//   * an ar archive (the common Unix flavor) with exactly three members,
//     in this order:
//   * "debian-binary", whose contents are the ASCII format version
//     ("2.0\n"); anything after the first newline is ignored.
//   * "control.tar" (optionally .gz, .xz, .bz2 or .zst), a tar archive
//     holding the package metadata. The member named "control" inside it
//     is an RFC822-like text paragraph of Tag: value fields.
//   * "data.tar" (same optional compressions), a tar archive holding the
//     files the package installs.
//
// The compression of the two tar members is detected independently, by
// default by sniffing magic bytes so that a mislabeled member still opens.
//
// The deb package contains the reader API. The deb/debdata package holds
// the wire-level pieces (version marker, compression formats), and
// deb/control holds the control-paragraph parser.
package debpkg
