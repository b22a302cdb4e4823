package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/narwhalfs/narwhal/engine"
	"github.com/narwhalfs/narwhal/errs"
	"github.com/narwhalfs/narwhal/statefile"
)

var now = time.Unix(1000, 0)

func TestAcquireNewEntryGrantedWhenEmpty(t *testing.T) {
	entries, dirty, granted, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, dirty)
	require.True(t, granted)
	require.Equal(t, []statefile.Entry{
		{Host: "host1", Pid: "100", Mode: statefile.Read, Status: statefile.Granted, Time: 1000},
	}, entries)
}

func TestAcquireParallelReaders(t *testing.T) {
	entries, _, granted, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, granted)

	entries, dirty, granted, err := engine.Acquire(entries, "host1", "200", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, dirty)
	require.True(t, granted)
	require.Len(t, entries, 2)
	require.Equal(t, statefile.Granted, entries[0].Status)
	require.Equal(t, statefile.Granted, entries[1].Status)
}

func TestAcquireWriterBlocksReader(t *testing.T) {
	entries, _, granted, err := engine.Acquire(nil, "host1", "100", statefile.Write, now)
	require.NoError(t, err)
	require.True(t, granted)

	entries, dirty, granted, err := engine.Acquire(entries, "host1", "200", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, dirty)
	require.False(t, granted)
	require.Equal(t, statefile.Pending, entries[1].Status)
}

func TestAcquireWriterPreferenceBlocksLaterReader(t *testing.T) {
	// A holds a read lock.
	entries, _, granted, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, granted)

	// B requests write: goes Pending even though no writer is granted,
	// since a read is granted and write conflicts with it.
	entries, _, granted, err = engine.Acquire(entries, "host1", "200", statefile.Write, now)
	require.NoError(t, err)
	require.False(t, granted)

	// C requests read: even though reads are compatible with A's granted
	// read, B's pending write means C must also wait.
	entries, _, granted, err = engine.Acquire(entries, "host1", "300", statefile.Read, now)
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, statefile.Pending, entries[2].Status)
}

func TestAcquireRenewsPendingEntryTime(t *testing.T) {
	entries, _, _, err := engine.Acquire(nil, "host1", "100", statefile.Write, now)
	require.NoError(t, err)
	entries, _, granted, err := engine.Acquire(entries, "host1", "200", statefile.Read, now)
	require.NoError(t, err)
	require.False(t, granted)

	later := now.Add(5 * time.Second)
	entries, dirty, granted, err := engine.Acquire(entries, "host1", "200", statefile.Read, later)
	require.NoError(t, err)
	require.False(t, granted)
	require.True(t, dirty, "renewing a still-pending entry's time must mark state dirty")
	require.Equal(t, later.Unix(), entries[1].Time)
}

func TestAcquireDoubleAcquireRejected(t *testing.T) {
	entries, _, granted, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)
	require.True(t, granted)

	before := append([]statefile.Entry(nil), entries...)
	_, _, _, err = engine.Acquire(entries, "host1", "100", statefile.Write, now)
	require.True(t, errs.Is(errs.Unsupported, err))
	require.Equal(t, before, entries)
}

func TestReleaseRemovesEntry(t *testing.T) {
	entries, _, _, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)

	entries, err = engine.Release(entries, "host1", "100")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestReleaseWithoutEntryIsUnsupported(t *testing.T) {
	_, err := engine.Release(nil, "host1", "100")
	require.True(t, errs.Is(errs.Unsupported, err))
}

func TestReleasePreservesOrderOfRemainder(t *testing.T) {
	entries, _, _, err := engine.Acquire(nil, "host1", "100", statefile.Read, now)
	require.NoError(t, err)
	entries, _, _, err = engine.Acquire(entries, "host1", "200", statefile.Read, now)
	require.NoError(t, err)

	entries, err = engine.Release(entries, "host1", "100")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "200", entries[0].Pid)
}
