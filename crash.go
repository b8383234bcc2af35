package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	crashFile = "crash_log.txt"
	crashOnce sync.Once
	// restoreTerm undoes whatever the active view did to the terminal.
	restoreTerm = func() {}
)

// guard runs fn and turns an escaping panic into a crash report and
// exit status 2.
func guard(name string, fn func()) {
	defer func() {
		if x := recover(); x != nil {
			crash(name, x, debug.Stack())
		}
	}()
	fn()
}

func crash(name string, x interface{}, stack []byte) {
	crashOnce.Do(func() {
		restoreTerm()
		report(name, x, stack)
		zap.L().Sync()
		LogError("%s crashed: %v (details in %s)", name, x, crashFile)
		os.Exit(2)
	})
}

// report appends the panic to the crash file and the log.
func report(name string, x interface{}, stack []byte) {
	if f, err := os.OpenFile(crashFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
		writeCrash(f, name, x, stack, time.Now())
		f.Close()
	}
	zap.S().Errorw("task panicked", "task", name, "panic", fmt.Sprint(x))
}

func writeCrash(w io.Writer, name string, x interface{}, stack []byte, at time.Time) {
	fmt.Fprintf(w, "=== %s panic in %s: %v\n%s\n", at.Format(time.RFC3339), name, x, stack)
}
