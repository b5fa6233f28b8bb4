// Package crashdump is the external collaborator behind
// dyndbg.InstallCrashHandler, the only place dyndbg imports it: a host
// application installs it, alongside dyndbg.StartMonitor, to get a fault
// report printed
// before the process goes down on SIGSEGV, SIGILL, SIGFPE or SIGBUS.
//
// Go's runtime owns these four signals for its own purposes (nil-pointer
// faults, divide-by-zero, stack-growth probes) and only forwards an
// instance to a process-registered channel when the fault did not
// originate in Go-managed code — see os/signal's "Go programs that use
// cgo" note. That rules out a literal three-argument sigaction trampoline
// with direct ucontext/mcontext access (no cgo is in play here), so this
// package reports what the Go runtime exposes instead: the faulting
// signal, a bounded symbolic backtrace via runtime.Callers, and a full
// goroutine dump via runtime.Stack, bounded by a byte budget the same way
// §4.E bounds its raw stack-memory dump. There is no general-purpose
// register dump and no EFLAGS.AC clearing here — both require the raw
// mcontext a pure-Go handler never sees. See DESIGN.md.
package crashdump

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// stackDumpBudget bounds the goroutine dump the way §4.E bounds its
// RSP-to-RBP stack print by a fixed byte budget.
const stackDumpBudget = 64 * 1024

// backtraceDepth bounds the symbolic backtrace length.
const backtraceDepth = 32

// skipFrames drops the two innermost frames, which belong to this
// package's own signal-dispatch plumbing rather than the fault site.
const skipFrames = 2

// Fault carries what could be recovered about a crash.
type Fault struct {
	Signal     os.Signal
	PC         uintptr
	Backtrace  []Frame
	Goroutines string
}

// Frame is one entry of the bounded backtrace.
type Frame struct {
	PC       uintptr
	Function string
	File     string
	Line     int
}

// Handler is invoked on a caught fault. Returning true tells Install's
// caller the process may continue (e.g. the handler repaired state);
// returning false causes the process to exit with a nonzero code. Note
// that "continue" here means the next watched signal is still handled —
// unlike a real sigaction return, a Go signal goroutine cannot resume the
// faulting instruction, so a handler that returns true is asking this
// package not to call os.Exit on its behalf, not asking for the CPU to
// resume where the fault happened.
type Handler func(Fault) (resume bool)

var (
	mu      sync.Mutex
	handler Handler
	sigCh   chan os.Signal
	log     = logrus.StandardLogger().WithField("component", "crashdump")
)

// watchedSignals are the four the spec assigns to this collaborator.
var watchedSignals = []os.Signal{
	syscall.SIGSEGV,
	syscall.SIGILL,
	syscall.SIGFPE,
	syscall.SIGBUS,
}

// Install registers cb as the fault handler and starts the dispatch
// goroutine. Calling Install again replaces the previous handler without
// re-registering the signal channel.
func Install(cb Handler) error {
	mu.Lock()
	defer mu.Unlock()

	handler = cb
	if sigCh != nil {
		return nil
	}
	sigCh = make(chan os.Signal, 4)
	signal.Notify(sigCh, watchedSignals...)
	go dispatch(sigCh)
	return nil
}

// SetLogger rebinds crashdump's own diagnostic logging.
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l.WithField("component", "crashdump")
}

// Guard runs fn and, if it faults with a runtime.Error (nil-pointer
// dereference, out-of-bounds index, integer divide by zero — the Go
// runtime's own equivalent of SIGSEGV/SIGFPE delivered as a panic instead
// of a raw signal), reports it through the installed Handler exactly like
// a caught signal. This is the path the vast majority of faults in a pure
// Go binary actually take: the runtime intercepts the hardware trap
// itself and re-raises it as a panic before a process-level signal
// handler would ever see it. Guard is how this package observes those.
//
// If fn completes normally, or panics with something other than a
// runtime.Error, Guard does not intervene (a non-runtime panic continues
// to propagate).
func Guard(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rerr, ok := r.(runtime.Error)
		if !ok {
			panic(r)
		}

		f := capture(runtimeFaultSignal(rerr))
		print(f)

		mu.Lock()
		cb := handler
		mu.Unlock()

		resume := false
		if cb != nil {
			resume = cb(f)
		}
		if !resume {
			os.Exit(1)
		}
	}()
	fn()
}

// runtimeFaultSignal guesses the signal a C debugger would have reported
// for the same fault, purely for Fault.Signal's benefit in logs — the Go
// runtime does not expose the original trap number for a recovered panic.
func runtimeFaultSignal(err runtime.Error) os.Signal {
	switch err.(type) {
	case runtime.Error:
		msg := err.Error()
		switch {
		case containsAny(msg, "invalid memory address", "nil pointer"):
			return syscall.SIGSEGV
		case containsAny(msg, "integer divide by zero"):
			return syscall.SIGFPE
		case containsAny(msg, "index out of range", "slice bounds out of range"):
			return syscall.SIGSEGV
		}
	}
	return syscall.SIGILL
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func dispatch(ch chan os.Signal) {
	for sig := range ch {
		f := capture(sig)
		print(f)

		mu.Lock()
		cb := handler
		mu.Unlock()

		resume := false
		if cb != nil {
			resume = cb(f)
		}
		if !resume {
			os.Exit(1)
		}
	}
}

func capture(sig os.Signal) Fault {
	var pcs [backtraceDepth + skipFrames]uintptr
	n := runtime.Callers(skipFrames+1, pcs[:])

	frames := runtime.CallersFrames(pcs[:n])
	var bt []Frame
	for {
		fr, more := frames.Next()
		bt = append(bt, Frame{PC: fr.PC, Function: fr.Function, File: fr.File, Line: fr.Line})
		if !more || len(bt) == backtraceDepth {
			break
		}
	}

	buf := make([]byte, stackDumpBudget)
	buf = buf[:runtime.Stack(buf, true)]

	var pc uintptr
	if n > 0 {
		pc = pcs[0]
	}

	return Fault{Signal: sig, PC: pc, Backtrace: bt, Goroutines: string(buf)}
}

func print(f Fault) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "dyndbg/crashdump: fatal signal %v at pc=%#x\n", f.Signal, f.PC)
	fmt.Fprintln(&b, "backtrace:")
	for _, fr := range f.Backtrace {
		fmt.Fprintf(&b, "  %s\n      %s:%d (%#x)\n", fr.Function, fr.File, fr.Line, fr.PC)
	}
	fmt.Fprintln(&b, "goroutines:")
	b.WriteString(f.Goroutines)

	os.Stderr.Write(b.Bytes())
	log.WithField("signal", f.Signal.String()).Error("fatal signal caught")
}
