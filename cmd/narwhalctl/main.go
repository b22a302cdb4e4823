// Command narwhalctl is a small driver over package narwhal, useful for
// shell scripts and for exercising a lockdir by hand: it takes a lockdir,
// an identity override, and one of five operations (read, write, unlock,
// sweep, reset), and exits nonzero on failure.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/narwhalfs/narwhal"
	"github.com/narwhalfs/narwhal/identity"
	"github.com/narwhalfs/narwhal/narwhallog"
	"github.com/narwhalfs/narwhal/statefile"
)

func main() {
	var (
		lockdir = flag.String("lockdir", "", "shared lockdir")
		host    = flag.String("host", "", "identity override: host")
		pid     = flag.String("pid", "", "identity override: pid")
		op      = flag.String("op", "", "one of: read, write, unlock, sweep, reset")
		spin    = flag.Duration("spin", 10*time.Millisecond, "sleep between mutex acquisition attempts")
		timeout = flag.Duration("timeout", 10*time.Second, "mutex acquisition timeout / staleness horizon")
	)
	narwhallog.AddFlags()
	flag.Parse()

	if *lockdir == "" || *op == "" {
		narwhallog.Fatal("usage: narwhalctl -lockdir DIR -op read|write|unlock|sweep|reset [-host H] [-pid P]")
	}

	if *host != "" {
		identity.SetHost(*host)
	}
	if *pid != "" {
		identity.SetPid(*pid)
	}

	var err error
	switch *op {
	case "read", "write", "unlock":
		l := narwhal.New(narwhal.Config{
			LockDir:      *lockdir,
			SpinInterval: *spin,
			Timeout:      *timeout,
		})
		switch *op {
		case "read":
			err = l.ReadLock()
		case "write":
			err = l.WriteLock()
		case "unlock":
			// Unlike the original test harness this unlock branch calls
			// Unlock, not WriteLock.
			err = l.Unlock()
		}
	case "sweep":
		host, pid := identity.Current()
		err = statefile.Sweep(*lockdir, host, pid, *spin, *timeout)
	case "reset":
		err = statefile.Reset(*lockdir)
	default:
		narwhallog.Fatalf("unknown -op %q", *op)
	}
	if err != nil {
		narwhallog.Error.Printf("%s: %v", *op, err)
		os.Exit(1)
	}
}
