package statefile

import (
	"os"
	"time"

	"github.com/narwhalfs/narwhal/fsmutex"
)

// Sweep performs lockdir maintenance outside of any acquire/release call:
// it takes the filesystem mutex itself, reaps stale entries the same way
// a normal Load would, and persists the result if anything was dropped.
// A caller can run this periodically without holding a read or write
// lock of its own; the identity it acquires the mutex under (host, pid)
// need not match any entry in the file.
func Sweep(lockdir, host, pid string, spin, timeout time.Duration) error {
	m := fsmutex.New(lockdir, host, pid, spin, timeout)
	if err := m.Lock(); err != nil {
		return err
	}
	defer m.Unlock()

	entries, dirty, err := Load(lockdir, time.Now(), timeout)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	return Save(lockdir, entries)
}

// Reset removes the state file wholesale, per the "hard reset" maintenance
// operation described for lockdir: safe only when no process is actively
// using it. Reset does not take the filesystem mutex — callers are
// responsible for ensuring the lockdir is quiescent before calling it.
func Reset(lockdir string) error {
	err := os.Remove(Name(lockdir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
