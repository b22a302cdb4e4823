// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package fsmutex implements the filesystem-level mutex narwhal uses to
// serialize access to its state file across hosts: a private per-process
// file hard-linked to a well-known name. Hard-link creation is the one
// primitive POSIX guarantees to be atomic across clients of a networked
// filesystem, so it is the only synchronization tool this package uses —
// there is deliberately no native mutex or flock(2) anywhere in here.
package fsmutex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/narwhalfs/narwhal/errs"
	"github.com/narwhalfs/narwhal/narwhallog"
	"github.com/narwhalfs/narwhal/retrypolicy"
)

// Mutex is an exclusive, cross-host lock over a lockdir. It is held by
// hard-linking a private file owned by (host, pid) to lockdir/lockfile;
// Unlock removes that link. A Mutex is not safe for concurrent use by
// multiple goroutines, matching narwhal's single-thread-per-process
// contract.
type Mutex struct {
	private  string
	lockfile string
	spin     time.Duration
	timeout  time.Duration
}

// New returns a Mutex guarding lockdir on behalf of (host, pid). spin is
// the sleep between failed link attempts; timeout bounds the total time
// Lock will spend spinning before giving up with an errs.Timeout error.
func New(lockdir, host, pid string, spin, timeout time.Duration) *Mutex {
	return &Mutex{
		private:  filepath.Join(lockdir, host+"."+pid),
		lockfile: filepath.Join(lockdir, "lockfile"),
		spin:     spin,
		timeout:  timeout,
	}
}

// Lock creates the private file and spins linking it to lockfile until it
// succeeds or timeout elapses, in which case it returns an errs.Timeout
// error. A failed link, whatever its cause, is retried after the spin
// interval; a failure creating the private file is reported as errs.IO.
func (m *Mutex) Lock() error {
	f, err := os.OpenFile(m.private, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return errs.E(errs.IO, fmt.Sprintf("creating private lock file %s", m.private), err)
	}
	if err := f.Close(); err != nil {
		return errs.E(errs.IO, fmt.Sprintf("creating private lock file %s", m.private), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	// A constant-interval spin is a Backoff policy whose initial and max
	// durations are equal; this lets the spin loop reuse retrypolicy.Wait's
	// deadline-aware timeout detection instead of a bespoke check.
	policy := retrypolicy.Backoff(m.spin, m.spin, 1)
	for retry := 0; ; retry++ {
		if err := os.Link(m.private, m.lockfile); err == nil {
			return nil
		}
		narwhallog.Debug.Printf("waiting for lock %s", m.lockfile)
		if err := retrypolicy.Wait(ctx, policy, retry); err != nil {
			if ctx.Err() != nil || errs.Is(errs.Timeout, err) {
				return errs.E(errs.Timeout, fmt.Sprintf("acquiring mutex %s", m.lockfile), err)
			}
			return errs.E(errs.IO, fmt.Sprintf("waiting to acquire mutex %s", m.lockfile), err)
		}
	}
}

// Unlock unlinks lockfile, then the private file. Both unlinks are
// always attempted; if both fail, the lockfile unlink's failure is
// reported, with the private-file unlink's failure chained onto it.
func (m *Mutex) Unlock() (err error) {
	defer errs.CleanUp(func() error { return remove(m.private) }, &err)
	err = remove(m.lockfile)
	return err
}

func remove(path string) error {
	if err := os.Remove(path); err != nil {
		return errs.E(errs.IO, fmt.Sprintf("removing %s", path), err)
	}
	return nil
}
