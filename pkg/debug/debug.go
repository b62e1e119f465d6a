// Package debug provides env-gated trace logging for ghtree.
//
// Tracing is switched on with the GHTREE_DEBUG environment variable:
//
//	GHTREE_DEBUG=1 ghtree tree --expand
//
// Messages go to stderr with timestamps unless redirected with SetOutput
// (the TUI points it at its log file so traces never touch the alternate
// screen). When disabled every function is a no-op.
//
//	debug.Log("cache %s -> %s", key, state)
//	defer debug.LogEnterExit("loader.Load")()
package debug

import (
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const (
	// EnvVar enables tracing when set to any non-empty value.
	EnvVar = "GHTREE_DEBUG"
	prefix = "[GHTREE_DEBUG] "
	flags  = log.Ltime | log.Lmicroseconds
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv(EnvVar) != "" {
		enabled = true
		logger = log.New(os.Stderr, prefix, flags)
	}
}

// Enabled returns whether tracing is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled turns tracing on or off programmatically.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, prefix, flags)
	}
}

// SetOutput redirects trace output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, prefix, flags)
}

func active() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style trace message.
func Log(format string, args ...any) {
	if l := active(); l != nil {
		l.Printf(format, args...)
	}
}

// LogIf writes a trace message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogTiming writes how long name took.
func LogTiming(name string, d time.Duration) {
	if l := active(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// LogEnterExit logs entry immediately and exit with elapsed time when the
// returned func runs:
//
//	defer debug.LogEnterExit("Projector.Project")()
func LogEnterExit(name string) func() {
	l := active()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if l := active(); l != nil {
		l.Printf("%s: %T = %+v", name, v, v)
	}
}
