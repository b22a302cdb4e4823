// Package engine implements narwhal's request engine: given a freshly
// loaded state, it decides whether a caller's acquire can be granted,
// mutates the in-memory entries to reflect that decision, and leaves
// persisting them to the caller (by way of statefile.Save under the
// filesystem mutex).
package engine

import (
	"time"

	"github.com/narwhalfs/narwhal/errs"
	"github.com/narwhalfs/narwhal/must"
	"github.com/narwhalfs/narwhal/statefile"
)

// Acquire updates entries to reflect a request from (host, pid) for mode,
// returning the updated entry slice, whether it changed (and so must be
// persisted), and whether the request is granted as of this call.
//
// A caller with no existing entry gets one appended, Granted or Pending
// depending on whether mode conflicts with any other entry currently on
// record (see grantableNow). A caller with an existing Pending entry of
// the same mode is re-examined and, if grantable now, flipped to Granted
// — and in either case its Time
// is refreshed to now, mirroring how the first acquire in this lockdir
// ever recorded it (renewal and the Pending-to-Granted flip happen in
// the same tick). A caller that already holds a Granted entry, or whose
// existing entry has a different mode, gets errs.Unsupported: callers
// cannot hold two locks or change mode without releasing first.
func Acquire(entries []statefile.Entry, host, pid string, mode statefile.Mode, now time.Time) (_ []statefile.Entry, dirty, granted bool, err error) {
	grantNow := grantableNow(entries, mode, host, pid)

	idx := statefile.Find(entries, host, pid)
	if idx < 0 {
		status := statefile.Pending
		if grantNow {
			status = statefile.Granted
		}
		entries = append(entries, statefile.Entry{
			Host:   host,
			Pid:    pid,
			Mode:   mode,
			Status: status,
			Time:   now.Unix(),
		})
		return entries, true, grantNow, nil
	}

	e := entries[idx]
	if e.Status == statefile.Granted || e.Mode != mode {
		return entries, false, false, errs.E(errs.Unsupported,
			"request conflicts with an existing entry for this host and pid")
	}

	if grantNow {
		e.Status = statefile.Granted
		dirty = true
	}
	if t := now.Unix(); e.Time != t {
		e.Time = t
		dirty = true
	}
	entries[idx] = e
	return entries, dirty, grantNow, nil
}

// grantableNow reports whether a request for mode from (host, pid) can be
// granted immediately given entries.
//
// A write request is granted only when no other entry is Granted:
// a writer needs exclusive access, but Pending entries do not hold it
// back, and among several pending writers whichever is re-examined
// first wins. A read request is blocked by any other entry whose mode
// is Write, granted or merely pending — not just by a granted writer.
// That second rule is what gives writers preference over readers that
// arrive (or are re-examined) after them: once a writer's request is on
// record, even readers compatible with the currently granted reader
// must wait behind it, rather than starving the writer by continually
// admitting new readers.
func grantableNow(entries []statefile.Entry, mode statefile.Mode, host, pid string) bool {
	for _, e := range entries {
		if e.Host == host && e.Pid == pid {
			continue
		}
		switch mode {
		case statefile.Write:
			if e.Status == statefile.Granted {
				return false
			}
		case statefile.Read:
			if e.Mode == statefile.Write {
				return false
			}
		}
	}
	return true
}

// Release removes (host, pid)'s entry from entries, preserving the order
// of the remainder. It fails with errs.Unsupported if no such entry
// exists, and asserts (a programmer error, not a recoverable one) that
// the entry it finds is Granted — a caller cannot release a lock it
// never held or never finished acquiring.
func Release(entries []statefile.Entry, host, pid string) ([]statefile.Entry, error) {
	idx := statefile.Find(entries, host, pid)
	if idx < 0 {
		return entries, errs.E(errs.Unsupported, "release of a nonexistent entry")
	}
	must.Truef(entries[idx].Status == statefile.Granted,
		"engine: release of an entry that was never granted (host=%s pid=%s)",
		host, pid)

	out := make([]statefile.Entry, 0, len(entries)-1)
	out = append(out, entries[:idx]...)
	out = append(out, entries[idx+1:]...)
	return out, nil
}
