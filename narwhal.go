// Package narwhal implements a distributed multiple-reader/single-writer
// advisory lock coordinated entirely through a shared directory on a
// networked filesystem, using hard-link creation as the only primitive
// that filesystem guarantees to be atomic across clients.
//
// A Lock is not safe for concurrent use by multiple goroutines: the
// contract, matching every layer beneath it, is one goroutine per
// process driving the lock.
package narwhal

import (
	"time"

	"github.com/narwhalfs/narwhal/engine"
	"github.com/narwhalfs/narwhal/errs"
	"github.com/narwhalfs/narwhal/fsmutex"
	"github.com/narwhalfs/narwhal/identity"
	"github.com/narwhalfs/narwhal/narwhallog"
	"github.com/narwhalfs/narwhal/statefile"
)

// Config configures a Lock. There is no mandatory setup call and no
// environment variable fallback: every field must be supplied by the
// caller.
type Config struct {
	// LockDir is the shared directory all cooperating processes
	// rendezvous in. It must live on a filesystem whose link(2) is
	// atomic across clients.
	LockDir string
	// SpinInterval is the sleep between filesystem-mutex acquisition
	// attempts.
	SpinInterval time.Duration
	// Timeout bounds how long a Lock will spin for the filesystem
	// mutex, and is also the staleness horizon used to reap state-file
	// entries on every load.
	Timeout time.Duration
}

// Lock is a handle to one (host, pid)'s access to a lockdir's advisory
// RW-lock. Multiple Locks in the same process share one process-wide
// identity (see the identity package); SetHost/SetPid on any Lock
// affects every Lock in the process.
type Lock struct {
	cfg Config
}

// New returns a Lock configured by cfg.
func New(cfg Config) *Lock {
	return &Lock{cfg: cfg}
}

// SetHost overrides the process-wide host identifier used by every Lock.
func (l *Lock) SetHost(host string) {
	identity.SetHost(host)
}

// SetPid overrides the process-wide pid identifier used by every Lock.
func (l *Lock) SetPid(pid string) {
	identity.SetPid(pid)
}

// ReadLock blocks until the calling (host, pid) holds a shared read
// lock on l's lockdir, or returns an error. It is an errs.Unsupported
// error to call ReadLock while already holding any lock.
func (l *Lock) ReadLock() error {
	return l.acquire(statefile.Read)
}

// WriteLock blocks until the calling (host, pid) holds the exclusive
// write lock on l's lockdir, or returns an error. It is an
// errs.Unsupported error to call WriteLock while already holding any
// lock, or to change mode from an existing read request.
func (l *Lock) WriteLock() error {
	return l.acquire(statefile.Write)
}

// acquire implements the retry loop shared by ReadLock and WriteLock:
// acquire the filesystem mutex, load the state, ask the engine to decide,
// persist if it mutated anything, release the mutex, and loop again if
// the engine says the request is merely pending.
func (l *Lock) acquire(mode statefile.Mode) error {
	host, pid := identity.Current()
	m := fsmutex.New(l.cfg.LockDir, host, pid, l.cfg.SpinInterval, l.cfg.Timeout)

	for {
		if err := m.Lock(); err != nil {
			return err
		}

		granted, err := l.acquireOnce(m, host, pid, mode)
		if err != nil {
			return err
		}
		if granted {
			return nil
		}
		narwhallog.Debug.Printf("%s.%s: %s still pending, retrying", host, pid, mode)
	}
}

// acquireOnce runs one mutex-held critical section of the retry loop:
// load, decide, persist if dirty. The mutex is always released before
// returning, and a critical-section error is never clobbered by the
// release attempt (errs.CleanUp guarantees both are always attempted
// and the first failure wins).
func (l *Lock) acquireOnce(m *fsmutex.Mutex, host, pid string, mode statefile.Mode) (granted bool, err error) {
	defer errs.CleanUp(m.Unlock, &err)

	now := time.Now()
	entries, reapDirty, err := statefile.Load(l.cfg.LockDir, now, l.cfg.Timeout)
	if err != nil {
		return false, err
	}

	entries, engineDirty, granted, err := engine.Acquire(entries, host, pid, mode, now)
	if err != nil {
		return false, err
	}

	if reapDirty || engineDirty {
		if err := statefile.Save(l.cfg.LockDir, entries); err != nil {
			return false, err
		}
	}
	return granted, nil
}

// Unlock releases whatever lock the calling (host, pid) currently holds.
// It is an errs.Unsupported error to call Unlock while holding no lock.
func (l *Lock) Unlock() (err error) {
	host, pid := identity.Current()
	m := fsmutex.New(l.cfg.LockDir, host, pid, l.cfg.SpinInterval, l.cfg.Timeout)

	if err := m.Lock(); err != nil {
		return err
	}
	defer errs.CleanUp(m.Unlock, &err)

	now := time.Now()
	entries, _, err := statefile.Load(l.cfg.LockDir, now, l.cfg.Timeout)
	if err != nil {
		return err
	}

	entries, err = engine.Release(entries, host, pid)
	if err != nil {
		return err
	}

	// Release always removes an entry, so the state always needs saving.
	return statefile.Save(l.cfg.LockDir, entries)
}
