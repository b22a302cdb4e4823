// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package statefile_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"

	"github.com/narwhalfs/narwhal/statefile"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	entries, dirty, err := statefile.Load(dir, time.Now(), 10*time.Second)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Empty(t, entries)
}

func TestRoundTrip(t *testing.T) {
	entries := []statefile.Entry{
		{Host: "host1", Pid: "100", Mode: statefile.Read, Status: statefile.Granted, Time: 1000},
		{Host: "host1", Pid: "200", Mode: statefile.Write, Status: statefile.Pending, Time: 1001},
	}
	data := statefile.Serialize(entries)
	got, dirty := statefile.Parse(data, time.Unix(1001, 0), time.Hour)
	require.False(t, dirty)
	require.Equal(t, entries, got)

	// Round trip: serialize(parse(s)) == s.
	require.Equal(t, data, statefile.Serialize(got))
}

func TestParseReapsStaleEntries(t *testing.T) {
	entries := []statefile.Entry{
		{Host: "host1", Pid: "100", Mode: statefile.Read, Status: statefile.Granted, Time: 0},
		{Host: "host1", Pid: "200", Mode: statefile.Write, Status: statefile.Pending, Time: 1000},
	}
	data := statefile.Serialize(entries)
	got, dirty := statefile.Parse(data, time.Unix(1000, 0), 10*time.Second)
	require.True(t, dirty)
	require.Len(t, got, 1)
	require.Equal(t, "200", got[0].Pid)
}

func TestSaveThenLoad(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	entries := []statefile.Entry{
		{Host: "host1", Pid: "100", Mode: statefile.Read, Status: statefile.Granted, Time: 1000},
	}
	require.NoError(t, statefile.Save(dir, entries))
	require.Equal(t, filepath.Join(dir, "state"), statefile.Name(dir))

	got, dirty, err := statefile.Load(dir, time.Unix(1000, 0), time.Hour)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, entries, got)
}

func TestFind(t *testing.T) {
	entries := []statefile.Entry{
		{Host: "host1", Pid: "100", Mode: statefile.Read, Status: statefile.Granted, Time: 1000},
	}
	require.Equal(t, 0, statefile.Find(entries, "host1", "100"))
	require.Equal(t, -1, statefile.Find(entries, "host1", "200"))
}
