package crashdump

import (
	"strings"
	"syscall"
	"testing"
)

func TestCaptureFillsBacktraceAndGoroutines(t *testing.T) {
	f := capture(syscall.SIGSEGV)

	if f.Signal != syscall.SIGSEGV {
		t.Fatalf("Signal = %v, want SIGSEGV", f.Signal)
	}
	if len(f.Backtrace) == 0 {
		t.Fatal("Backtrace is empty")
	}
	if len(f.Backtrace) > backtraceDepth {
		t.Fatalf("Backtrace has %d frames, want <= %d", len(f.Backtrace), backtraceDepth)
	}
	if f.PC == 0 {
		t.Fatal("PC is zero")
	}
	if !strings.Contains(f.Goroutines, "goroutine") {
		t.Fatal("Goroutines dump does not look like a runtime.Stack dump")
	}
	if len(f.Goroutines) > stackDumpBudget {
		t.Fatalf("Goroutines dump exceeds budget: %d > %d", len(f.Goroutines), stackDumpBudget)
	}
}

func TestGuardRecoversRuntimeErrorAndCallsHandler(t *testing.T) {
	var got Fault
	var called bool
	mu.Lock()
	handler = func(f Fault) bool {
		got = f
		called = true
		return true
	}
	mu.Unlock()

	Guard(func() {
		var p *int
		_ = *p
	})

	if !called {
		t.Fatal("Guard did not invoke the handler")
	}
	if got.Signal != syscall.SIGSEGV {
		t.Fatalf("Signal = %v, want SIGSEGV", got.Signal)
	}
}

func TestGuardRepanicsNonRuntimeError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Guard swallowed a non-runtime panic")
		}
	}()
	Guard(func() { panic("not a runtime.Error") })
}

func TestInstallReplacesHandlerWithoutReregistering(t *testing.T) {
	var calls int
	if err := Install(func(Fault) bool { calls++; return true }); err != nil {
		t.Fatalf("Install: %v", err)
	}
	firstCh := sigCh

	if err := Install(func(Fault) bool { calls += 10; return true }); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if sigCh != firstCh {
		t.Fatal("Install re-registered the signal channel on a second call")
	}
}
