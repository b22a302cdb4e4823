package errs

import (
	"fmt"
)

// CleanUp is defer-able syntactic sugar that calls cleanUp and reports an
// error, if any, to *dst. Pass the caller's named return error. Example
// usage:
//
//   func (m *Mutex) Unlock() (err error) {
//     defer errs.CleanUp(func() error { return os.Remove(m.private) }, &err)
//     return os.Remove(m.lockfile)
//   }
//
// fsmutex's Mutex.Unlock and the narwhal retry loop both rely on this: unlinking
// the lockfile and unlinking the private file (or releasing the mutex and
// reporting a critical-section error) must both always be attempted, and
// whichever fails first is the error the caller sees.
func CleanUp(cleanUp func() error, dst *error) {
	addErr(cleanUp(), dst)
}

func addErr(err2 error, dst *error) {
	if err2 == nil {
		return
	}
	if *dst == nil {
		*dst = err2
		return
	}
	// We don't chain err2 as *dst's cause because *dst may already have a
	// meaningful cause, and err2 could be something unrelated.
	*dst = E(*dst, fmt.Sprintf("second error in cleanup: %v", err2))
}
