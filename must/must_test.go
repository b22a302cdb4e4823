// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package must_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/narwhalfs/narwhal/must"
)

func TestAssertions(t *testing.T) {
	var calls int
	must.Func = func(v ...interface{}) {
		calls++
	}
	defer func() { calls = 0 }()

	must.True(true)
	must.Truef(true, "")
	must.Nil(nil)
	must.Nilf(nil, "")
	if calls != 0 {
		t.Fatalf("got %d calls for true/nil assertions, want 0", calls)
	}

	must.True(false)
	must.Truef(false, "x")
	must.Nil(errors.New("boom"))
	must.Nilf(errors.New("boom"), "x")
	must.Never()
	must.Neverf("x")
	if calls != 6 {
		t.Fatalf("got %d calls, want 6", calls)
	}
}

func Example() {
	must.Func = func(v ...interface{}) {
		fmt.Print(v...)
		fmt.Print("\n")
	}

	must.Nil(errors.New("unexpected condition"))
	must.Nil(nil)
	must.Nil(errors.New("some error"))
	must.Nil(errors.New("i/o error"), "reading file")

	must.True(false)
	must.True(true, "something happened")
	must.True(false, "a condition failed")

	// Output:
	// unexpected condition
	// some error
	// reading file: i/o error
	// must: assertion failed
	// a condition failed
}
