// Command lockprofdemo runs a small contended workload under the
// lock profiler and serves the resulting snapshot, report, and
// timeline over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"lockprof/internal/app"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		configFile = os.Getenv("LOCKPROF_CONFIG_FILE")
	}

	fmt.Printf("lockprofdemo: using configuration file: %q\n", configFile)

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application: %v\n", err)
		os.Exit(1)
	}

	runWorkload(application)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Session().DumpStats(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write stats dump: %v\n", err)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

// runWorkload drives a handful of goroutines contending on two traced
// locks, so the demo server has something to report on once it comes
// up — one goroutine taking one lock at every level of a recursive
// helper, and several workers sharing a counter guarded by the other.
// TracedMutex wraps a sync.Mutex, which is not reentrant, so each level
// releases the lock before recursing.
func runWorkload(application *app.App) {
	sess := application.Session()
	counterLock := sess.TraceMutex("counter")
	recursiveLock := sess.TraceMutex("recursive")

	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go sess.RegisterFunc(func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				counterLock.Lock()
				counter++
				time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
				counterLock.Unlock()
			}
		})()
	}

	wg.Add(1)
	go sess.RegisterFunc(func() {
		defer wg.Done()
		var recurse func(depth int)
		recurse = func(depth int) {
			recursiveLock.Lock()
			recursiveLock.Unlock()
			if depth > 0 {
				recurse(depth - 1)
			}
		}
		for i := 0; i < 10; i++ {
			recurse(3)
		}
	})()

	wg.Wait()
	_ = counter
}
