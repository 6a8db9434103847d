// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deb

import (
	"archive/tar"
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

func ensureRoot(root string) error {
	st, err := os.Stat(root)
	if os.IsNotExist(err) {
		return errors.Annotate(os.MkdirAll(root, 0777), "making root dir").Err()
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return errors.Reason("%q is not a directory", root).Err()
	}
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	finfos, err := f.Readdir(1)
	f.Close()
	if err != nil && err != io.EOF {
		return err
	}
	if len(finfos) != 0 {
		return errors.New("dir not empty")
	}
	return nil
}

// entryRel normalizes a tar entry name and confines it to the unpack root.
func entryRel(name string) (string, error) {
	rel := filepath.FromSlash(path.Clean(strings.TrimPrefix(name, "./")))
	if rel == "." {
		return "", nil
	}
	if !filepath.IsLocal(rel) {
		return "", errors.Reason("entry %q escapes the unpack root", name).Err()
	}
	return rel, nil
}

// trustDirs rejects entries whose parent chain contains a symlink. A
// symlinked parent would redirect the write outside the unpack root, so
// every component on the way down has to be a real directory (or not
// exist yet).
func trustDirs(root, rel string) error {
	dir := filepath.Dir(rel)
	if dir == "." {
		return nil
	}
	cur := root
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		st, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Annotate(err, "checking parent of %q", rel).Err()
		}
		if st.Mode()&os.ModeSymlink != 0 {
			return errors.Reason("entry %q traverses symlink %q", rel, part).Err()
		}
	}
	return nil
}

// symlinks are written in the calling goroutine so that trustDirs sees
// them before any later entry tries to descend through one.
func ensureSymlink(ech chan<- error, abs, rel, target string) {
	ech <- errors.Annotate(os.Symlink(target, abs),
		"writing symlink %q -> %q", rel, target).Err()
}

func ensureLink(wg *sync.WaitGroup, ech chan<- error, root, abs, rel, target string) {
	targetRel, err := entryRel(target)
	if err != nil {
		ech <- errors.Annotate(err, "link %q", rel).Err()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ech <- errors.Annotate(os.Link(filepath.Join(root, targetRel), abs),
			"writing link %q -> %q", rel, target).Err()
	}()
}

func ensureFile(syncBuf []byte, wg *sync.WaitGroup, ech chan<- error, abs, rel string, r io.Reader, hdr *tar.Header) {
	if err := os.MkdirAll(filepath.Dir(abs), 0777); err != nil {
		ech <- errors.Annotate(err, "making parent of %q", rel).Err()
		return
	}
	f, err := os.Create(abs)
	if err != nil {
		ech <- errors.Annotate(err, "creating file %q", rel).Err()
		return
	}
	// must copy in the calling goroutine because all files are sequential
	// in r (and there's no seek method). However, we don't need to block on
	// chmod'ing/closing the file.
	if _, err := io.CopyBuffer(f, r, syncBuf); err != nil {
		f.Close()
		ech <- errors.Annotate(err, "writing file %q", rel).Err()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.Chmod(hdr.FileInfo().Mode().Perm()); err != nil {
			ech <- errors.Annotate(err, "setting mode %q", rel).Err()
		}
		ech <- errors.Annotate(f.Close(), "closing file %q", rel).Err()
	}()
}

// prefetch decouples decompression from filesystem writes by pumping the
// member stream through a pipe with a large read-ahead buffer.
func (p *Package) prefetch(r io.Reader) io.Reader {
	if p.opts.unpackBufferSize <= 0 {
		return r
	}
	rd, wr := io.Pipe()
	go func() {
		_, err := bufio.NewReaderSize(r, p.opts.unpackBufferSize).WriteTo(wr)
		wr.CloseWithError(err)
	}()
	return rd
}

func (p *Package) unpackEntries(ctx context.Context, archive *tar.Reader, root string, syncBuf []byte, wg *sync.WaitGroup, ech chan<- error) error {
	for {
		hdr, err := archive.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Annotate(err, "reading data archive").Err()
		}

		rel, err := entryRel(hdr.Name)
		if err != nil {
			return err
		}
		if rel == "" {
			continue
		}
		if err := trustDirs(root, rel); err != nil {
			return err
		}
		abs := filepath.Join(root, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(abs, 0777); err != nil {
				// this immediately quits the loop
				return errors.Annotate(err, "FATAL: making dir %q", rel).Err()
			}

		case tar.TypeSymlink:
			ensureSymlink(ech, abs, rel, hdr.Linkname)

		case tar.TypeLink:
			ensureLink(wg, ech, root, abs, rel, hdr.Linkname)

		case tar.TypeReg:
			ensureFile(syncBuf, wg, ech, abs, rel, archive, hdr)

		default:
			logging.Warningf(ctx, "skipping entry %q with unsupported type %d", rel, hdr.Typeflag)
		}
	}
}

// UnpackTo does a streaming unpack of the entire data member to the
// provided location.
//
// root must be either a non-existent path, or a path to an empty directory.
//
// Like DataArchive, it can run at most once per Package; the forward-only
// source cannot replay the data member.
func (p *Package) UnpackTo(ctx context.Context, root string) error {
	rc, err := p.nextData()
	if err != nil {
		return err
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return errors.Annotate(err, "making abspath").Err()
	}

	if err := ensureRoot(root); err != nil {
		return errors.Annotate(err, "checking root").Err()
	}

	archive := tar.NewReader(p.prefetch(rc))

	ech := make(chan error, 1)
	go func() {
		defer close(ech)

		wg := &sync.WaitGroup{}
		defer wg.Wait()

		syncBuf := make([]byte, 32*1024)

		ech <- p.unpackEntries(ctx, archive, root, syncBuf, wg, ech)
	}()

	hadError := false
	for err := range ech {
		if err == nil {
			continue
		}
		if !hadError {
			logging.Errorf(ctx, "errors while unpacking to %q:", root)
			hadError = true
		}
		logging.Errorf(ctx, "  %s", err)
	}
	if hadError {
		return errors.New("errors while unpacking (see log)")
	}

	return p.closeMember()
}
