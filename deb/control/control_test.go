// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package control

import (
	"archive/tar"
	"bytes"
	"context"
	"strings"
	"testing"

	"go.chromium.org/luci/common/errors"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"
)

func parse(text string) (*Control, error) {
	return Parse(context.Background(), strings.NewReader(text))
}

func TestParse(t *testing.T) {
	t.Parallel()

	Convey("Parse", t, func() {
		Convey("empty control file fails", func() {
			_, err := parse("")
			So(errors.Is(err, ErrMissingPackageName), ShouldBeTrue)
		})

		Convey("only name fails", func() {
			_, err := parse("package: name_only")
			So(errors.Is(err, ErrMissingPackageVersion), ShouldBeTrue)
		})

		Convey("only version fails", func() {
			_, err := parse("version: 1.8.2")
			So(errors.Is(err, ErrMissingPackageName), ShouldBeTrue)
		})

		Convey("name and version parse", func() {
			ctrl, err := parse("package: name\nversion: 1.8.2")
			So(err, ShouldBeNil)
			So(ctrl.Name(), ShouldEqual, "name")
			So(ctrl.Version(), ShouldEqual, "1.8.2")
		})

		Convey("lookup is case-insensitive", func() {
			ctrl, err := parse("Package: foo\nVersion: 1\nArchitecture: amd64\n")
			So(err, ShouldBeNil)
			for _, tag := range []string{"Architecture", "architecture", "ARCHITECTURE"} {
				v, ok := ctrl.Get(tag)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "amd64")
			}
			_, ok := ctrl.Get("Maintainer")
			So(ok, ShouldBeFalse)
		})

		Convey("description folds", func() {
			ctrl, err := parse("package: name\nversion: 1.8.2\nDescription: short\n very\n long")
			So(err, ShouldBeNil)
			short, ok := ctrl.ShortDescription()
			So(ok, ShouldBeTrue)
			So(short, ShouldEqual, "short")
			long, ok := ctrl.LongDescription()
			So(ok, ShouldBeTrue)
			So(long, ShouldEqual, "very\nlong")
		})

		Convey("single-line description has no long value", func() {
			ctrl, err := parse("package: name\nversion: 1.8.2\nDescription: short")
			So(err, ShouldBeNil)
			_, ok := ctrl.LongDescription()
			So(ok, ShouldBeFalse)
		})

		Convey("continuation on any field is kept", func() {
			ctrl, err := parse("package: name\n extra\nversion: 1.8.2")
			So(err, ShouldBeNil)
			So(ctrl.Name(), ShouldEqual, "name")
		})

		Convey("leading continuation fails", func() {
			_, err := parse(" continue\npackage: name\nversion: 1.8.2")
			So(errors.Is(err, ErrInvalidControlFile), ShouldBeTrue)
			So(err, ShouldErrLike, "continuation line before any field")
		})

		Convey("continuation after only comments fails", func() {
			_, err := parse("# note\n continue\npackage: name\nversion: 1.8.2")
			So(errors.Is(err, ErrInvalidControlFile), ShouldBeTrue)
		})

		Convey("comments are discarded", func() {
			ctrl, err := parse("# header\npackage: name\n# middle\nversion: 1.8.2")
			So(err, ShouldBeNil)
			count := 0
			So(ctrl.LoopTags(func(string) error { count++; return nil }), ShouldBeNil)
			So(count, ShouldEqual, 2)
		})

		Convey("paragraph separator is tolerated", func() {
			ctrl, err := parse("package: name\n\nversion: 1.8.2\n \t\n")
			So(err, ShouldBeNil)
			So(ctrl.Version(), ShouldEqual, "1.8.2")
		})

		Convey("non-field line fails", func() {
			_, err := parse("package: name\nthis is wrong")
			So(errors.Is(err, ErrInvalidControlFile), ShouldBeTrue)
			So(err, ShouldErrLike, "is not a field")
		})

		Convey("duplicate field fails", func() {
			_, err := parse("package: name\nversion: 1.8.2\npackage: name2")
			So(errors.Is(err, ErrInvalidControlFile), ShouldBeTrue)
			So(err, ShouldErrLike, "duplicate field")
		})

		Convey("duplicate field differing in case fails", func() {
			_, err := parse("Package: a\nVersion: 1\npackage: b\n")
			So(errors.Is(err, ErrInvalidControlFile), ShouldBeTrue)
		})

		Convey("tags", func() {
			ctrl, err := parse("Package: name\nversion: 1.8.2\nInstalled-Size: 10")
			So(err, ShouldBeNil)

			Convey("keep insertion order and casing", func() {
				var tags []string
				So(ctrl.LoopTags(func(tag string) error {
					tags = append(tags, tag)
					return nil
				}), ShouldBeNil)
				So(tags, ShouldResemble, []string{"Package", "version", "Installed-Size"})
			})

			Convey("iteration restarts from the top", func() {
				first := ""
				cb := func(tag string) error { first = tag; return errors.New("stop") }
				So(ctrl.LoopTags(cb), ShouldErrLike, "stop")
				So(first, ShouldEqual, "Package")
				So(ctrl.LoopTags(cb), ShouldErrLike, "stop")
				So(first, ShouldEqual, "Package")
			})

			Convey("fields carry short values", func() {
				got := map[string]string{}
				So(ctrl.LoopFields(func(tag, value string) error {
					got[tag] = value
					return nil
				}), ShouldBeNil)
				So(got, ShouldResemble, map[string]string{
					"Package":        "name",
					"version":        "1.8.2",
					"Installed-Size": "10",
				})
			})
		})
	})
}

func controlTar(names ...string) *tar.Reader {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, name := range names {
		body := "Package: foo\nVersion: 1.2.3\n"
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     int64(len(body)),
		}); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
	return tar.NewReader(buf)
}

func TestExtract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	Convey("Extract", t, func() {
		Convey("bare control name", func() {
			ctrl, err := Extract(ctx, controlTar("md5sums", "control"))
			So(err, ShouldBeNil)
			So(ctrl.Name(), ShouldEqual, "foo")
		})

		Convey("./control path form", func() {
			ctrl, err := Extract(ctx, controlTar("./md5sums", "./control"))
			So(err, ShouldBeNil)
			So(ctrl.Name(), ShouldEqual, "foo")
		})

		Convey("missing control file", func() {
			_, err := Extract(ctx, controlTar("md5sums"))
			So(errors.Is(err, ErrMissingControlFile), ShouldBeTrue)
		})
	})
}
