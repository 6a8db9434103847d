// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package control parses the control file of a binary Debian package: one
// RFC822-like paragraph of "Tag: value" fields with case-insensitive tags
// and whitespace-led continuation lines.
package control

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"strings"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

// Error kinds reported by Parse and Extract.
var (
	// ErrInvalidControlFile means the control text did not follow the field
	// grammar (duplicate tag, orphan continuation line, or a line that is
	// neither a field, a continuation, nor a comment).
	ErrInvalidControlFile = errors.New("invalid control file")

	// ErrMissingControlFile means the control archive holds no member named
	// "control" (or "./control").
	ErrMissingControlFile = errors.New("control archive is missing control file")

	// ErrMissingPackageName means the control file has no Package field.
	ErrMissingPackageName = errors.New("control file has no package name")

	// ErrMissingPackageVersion means the control file has no Version field.
	ErrMissingPackageVersion = errors.New("control file has no package version")
)

// asciiFold lowercases ASCII letters in s. When s has no uppercase letters
// (the common lookup case) it is returned as-is, without allocating.
func asciiFold(s string) string {
	i := 0
	for ; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			break
		}
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if c := b[i]; 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// field is one "Tag: value" entry, with the tag's original casing and any
// continuation lines in the order they appeared.
type field struct {
	tag   string
	value string
	extra []string
}

// Control is the parsed control paragraph: an insertion-ordered table of
// fields with case-insensitive tags. It is read-only after Parse.
type Control struct {
	fields []field
	index  map[string]int
}

func newControl() *Control {
	return &Control{index: map[string]int{}}
}

func (c *Control) lookup(tag string) (*field, bool) {
	i, ok := c.index[asciiFold(tag)]
	if !ok {
		return nil, false
	}
	return &c.fields[i], true
}

func (c *Control) insert(tag, value string) error {
	folded := asciiFold(tag)
	if _, dup := c.index[folded]; dup {
		return errors.Annotate(ErrInvalidControlFile, "duplicate field %q", tag).Err()
	}
	c.index[folded] = len(c.fields)
	c.fields = append(c.fields, field{tag: tag, value: value})
	return nil
}

// Extract finds the control file inside the control tar and parses it. Both
// the bare "control" and "./control" path forms are accepted.
func Extract(ctx context.Context, archive *tar.Reader) (*Control, error) {
	for {
		hdr, err := archive.Next()
		if err == io.EOF {
			return nil, ErrMissingControlFile
		}
		if err != nil {
			return nil, errors.Annotate(err, "reading control archive").Err()
		}
		if hdr.Name == "control" || hdr.Name == "./control" {
			return Parse(ctx, archive)
		}
	}
}

// Parse reads a control paragraph from r.
//
// Lines starting with '#' are comments. A line starting with a space or tab
// continues the value of the previous field. Blank lines nominally separate
// paragraphs, which a control file must not contain more than one of; they
// are tolerated with a warning. The paragraph must define Package and
// Version fields.
func Parse(ctx context.Context, r io.Reader) (*Control, error) {
	ctrl := newControl()
	cur := -1

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" {
			// The format allows one paragraph per control file, so a separator
			// here is nominally an error; tolerate it like dpkg does.
			logging.Warningf(ctx, "unexpected paragraph separation in control file")
			continue
		}

		switch trimmed[0] {
		case '#':
			continue

		case ' ', '\t':
			if cur < 0 {
				return nil, errors.Annotate(ErrInvalidControlFile,
					"continuation line before any field").Err()
			}
			f := &ctrl.fields[cur]
			f.extra = append(f.extra, strings.TrimSpace(line))

		default:
			name, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
			if !ok {
				return nil, errors.Annotate(ErrInvalidControlFile,
					"line %q is not a field", trimmed).Err()
			}
			if err := ctrl.insert(strings.TrimSpace(name), strings.TrimSpace(rest)); err != nil {
				return nil, err
			}
			cur = len(ctrl.fields) - 1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotate(err, "reading control file").Err()
	}

	if _, ok := ctrl.lookup("Package"); !ok {
		return nil, ErrMissingPackageName
	}
	if _, ok := ctrl.lookup("Version"); !ok {
		return nil, ErrMissingPackageVersion
	}

	return ctrl, nil
}

// Name returns the package name. Parse guarantees the field exists.
func (c *Control) Name() string {
	v, _ := c.Get("Package")
	return v
}

// Version returns the package version. Parse guarantees the field exists.
func (c *Control) Version() string {
	v, _ := c.Get("Version")
	return v
}

// Get returns the first-line ("short") value of the named field. The tag is
// matched case-insensitively.
func (c *Control) Get(tag string) (string, bool) {
	f, ok := c.lookup(tag)
	if !ok {
		return "", false
	}
	return f.value, true
}

// ShortDescription returns the first line of the Description field, if the
// field is present.
func (c *Control) ShortDescription() (string, bool) {
	return c.Get("Description")
}

// LongDescription returns the continuation lines of the Description field
// joined with newlines. ok is false if the field is absent or has no
// continuation lines.
func (c *Control) LongDescription() (string, bool) {
	f, ok := c.lookup("Description")
	if !ok || len(f.extra) == 0 {
		return "", false
	}
	return strings.Join(f.extra, "\n"), true
}

// LoopTags invokes cb for every field tag, in insertion order and with the
// casing the control file used. Returning an error from cb immediately
// stops the loop and LoopTags forwards that error.
func (c *Control) LoopTags(cb func(tag string) error) error {
	for i := range c.fields {
		if err := cb(c.fields[i].tag); err != nil {
			return err
		}
	}
	return nil
}

// LoopFields invokes cb for every field with its tag and short value, in
// insertion order. Returning an error from cb immediately stops the loop
// and LoopFields forwards that error.
func (c *Control) LoopFields(cb func(tag, value string) error) error {
	for i := range c.fields {
		if err := cb(c.fields[i].tag, c.fields[i].value); err != nil {
			return err
		}
	}
	return nil
}
