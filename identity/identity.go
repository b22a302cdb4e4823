// Package identity holds the two process-wide strings narwhal tags every
// lock request with: a host name and a pid. They are process-wide by
// design (every narwhal.Lock in a process shares one identity), but
// unlike a bare exported global, every access goes through SetHost,
// SetPid, and Current, so initialization order and validation are
// enforced in one place instead of left to whichever caller first
// touches the variable.
package identity

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/narwhalfs/narwhal/must"
)

const maxHostLen = 255

var (
	mu   sync.Mutex
	host string
	pid  string
)

// SetHost overrides the process-wide host identifier. s must be
// non-empty; any space in s is rewritten to underscore so the state file
// stays whitespace-delimitable.
func SetHost(s string) {
	must.Truef(s != "", "identity.SetHost: empty host")
	mu.Lock()
	host = sanitize(s)
	mu.Unlock()
}

// SetPid overrides the process-wide pid identifier. s must be non-empty.
func SetPid(s string) {
	must.Truef(s != "", "identity.SetPid: empty pid")
	mu.Lock()
	pid = s
	mu.Unlock()
}

// Current returns the process-wide (host, pid), lazily initializing
// whichever half hasn't been set yet from the operating system.
func Current() (string, string) {
	mu.Lock()
	defer mu.Unlock()
	if host == "" {
		host = queryHost()
	}
	if pid == "" {
		pid = strconv.Itoa(os.Getpid())
	}
	return host, pid
}

func queryHost() string {
	name, err := os.Hostname()
	must.Nilf(err, "identity: os.Hostname")
	if len(name) > maxHostLen {
		name = name[:maxHostLen]
	}
	return sanitize(name)
}

func sanitize(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}
