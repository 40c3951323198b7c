// Package debug gates diagnostic and informational console output.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	enabled     = os.Getenv("LABTOHUB_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	timestamps  = os.Getenv("LABTOHUB_DEBUG_TIMESTAMPS") != ""

	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects normal and debug output. It returns a function that
// restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	mu.Lock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	mu.Unlock()
	return func() {
		mu.Lock()
		stdout, stderr = prevOut, prevErr
		mu.Unlock()
	}
}

// Logf writes to stderr when debug output is enabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if timestamps {
		fmt.Fprint(stderr, time.Now().Format("15:04:05.000 "))
	}
	fmt.Fprintf(stderr, format, args...)
}

// PrintNormal prints output unless quiet mode is enabled
func PrintNormal(format string, args ...interface{}) {
	if quietMode {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(stdout, format, args...)
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if quietMode {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(stdout, args...)
}
