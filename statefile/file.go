// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package statefile implements the on-disk codec for narwhal's state
// file: the plain-text record of every outstanding lock request in a
// lockdir. It is always read and rewritten while the caller holds the
// corresponding fsmutex.Mutex; this package performs no locking of its
// own.
package statefile

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/narwhalfs/narwhal/errs"
	"github.com/narwhalfs/narwhal/must"
)

// Mode is the kind of access an Entry requests.
type Mode byte

const (
	Read  Mode = 'R'
	Write Mode = 'W'
)

func (m Mode) String() string {
	return string(rune(m))
}

// Status is whether an Entry's request has been satisfied.
type Status byte

const (
	Pending Status = 'P'
	Granted Status = 'G'
)

func (s Status) String() string {
	return string(rune(s))
}

// Entry is one outstanding request, one line of the state file. Host and
// Pid are independently allocated strings: the parser never aliases an
// Entry's fields into the bytes it read off disk.
type Entry struct {
	Host   string
	Pid    string
	Mode   Mode
	Status Status
	Time   int64
}

func (e Entry) sameOwner(host, pid string) bool {
	return e.Host == host && e.Pid == pid
}

// Name returns the state file's path within lockdir.
func Name(lockdir string) string {
	return filepath.Join(lockdir, "state")
}

// Load reads and parses lockdir's state file, reaping any entry whose
// Time is older than now.Add(-timeout). A missing state file is treated
// as an empty state, not an error. dirty reports whether reaping dropped
// at least one entry, meaning the caller must Save before releasing the
// filesystem mutex to persist the reaping.
func Load(lockdir string, now time.Time, timeout time.Duration) (entries []Entry, dirty bool, err error) {
	data, err := ioutil.ReadFile(Name(lockdir))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.E(errs.IO, fmt.Sprintf("reading %s", Name(lockdir)), err)
	}
	entries, dirty = Parse(data, now, timeout)
	return entries, dirty, nil
}

// Parse splits data into whitespace-delimited 5-tuples and reaps any
// entry whose Time is older than now.Add(-timeout). Parse trusts that
// data was produced by Serialize: a field count not divisible by five,
// or an out-of-alphabet Mode/Status byte, is a programmer error and
// triggers a must assertion rather than returning an error.
func Parse(data []byte, now time.Time, timeout time.Duration) (entries []Entry, dirty bool) {
	fields := strings.Fields(string(data))
	must.Truef(len(fields)%5 == 0, "statefile: malformed state file: %d fields", len(fields))

	firstFresh := now.Add(-timeout).Unix()
	for i := 0; i < len(fields); i += 5 {
		host := fields[i]
		pid := fields[i+1]
		mode := fields[i+2]
		status := fields[i+3]
		must.Truef(len(mode) == 1 && (mode[0] == byte(Read) || mode[0] == byte(Write)),
			"statefile: malformed mode field %q", mode)
		must.Truef(len(status) == 1 && (status[0] == byte(Pending) || status[0] == byte(Granted)),
			"statefile: malformed status field %q", status)
		t, err := strconv.ParseInt(fields[i+4], 10, 64)
		must.Nilf(err, "statefile: malformed time field %q", fields[i+4])

		if t < firstFresh {
			dirty = true
			continue
		}
		entries = append(entries, Entry{
			Host:   host,
			Pid:    pid,
			Mode:   Mode(mode[0]),
			Status: Status(status[0]),
			Time:   t,
		})
	}
	return entries, dirty
}

// Serialize renders entries in their given order, one line each, exactly
// as Parse expects to read them back: round-tripping Serialize's output
// through Parse (with a timeout that reaps nothing) reproduces entries.
func Serialize(entries []Entry) []byte {
	var b bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %c %c %d\n", e.Host, e.Pid, e.Mode, e.Status, e.Time)
	}
	return b.Bytes()
}

// Save overwrites lockdir's state file with entries. The caller must
// hold the lockdir's filesystem mutex; cross-client atomicity comes from
// that mutex, not from this write.
func Save(lockdir string, entries []Entry) error {
	if err := ioutil.WriteFile(Name(lockdir), Serialize(entries), 0666); err != nil {
		return errs.E(errs.IO, fmt.Sprintf("writing %s", Name(lockdir)), err)
	}
	return nil
}

// Find returns the index of the entry owned by (host, pid), or -1 if
// there is none.
func Find(entries []Entry, host, pid string) int {
	for i, e := range entries {
		if e.sameOwner(host, pid) {
			return i
		}
	}
	return -1
}
