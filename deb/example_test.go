// Copyright 2020 Matt Schulte. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package deb_test

import (
	"context"
	"fmt"
	"os"

	"github.com/schultetwin1/debpkg/deb"
)

func Example() {
	f, err := os.Open("test.deb")
	if err != nil {
		panic(err)
	}
	defer f.Close()

	ctx := context.Background()

	pkg, err := deb.Parse(ctx, f)
	if err != nil {
		panic(err)
	}
	defer pkg.Close()

	fmt.Println("Package Name:", pkg.Name())
	fmt.Println("Package Version:", pkg.Version())
	if arch, ok := pkg.Get("Architecture"); ok {
		fmt.Println("Package Architecture:", arch)
	}

	dir, err := os.MkdirTemp("", "")
	if err != nil {
		panic(err)
	}
	if err := pkg.UnpackTo(ctx, dir); err != nil {
		panic(err)
	}
}
