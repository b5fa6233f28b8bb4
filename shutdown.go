package dyndbg

import "sync"

// Shutdown is a best-effort teardown for a process that wants to release
// its hardware slots without exiting outright. It isn't part of spec.md's
// public API list but falls directly out of §5's resource-ownership note
// that the context is "leaked at process exit intentionally" — a process
// that intends to keep running still needs a way to give its slots back.
// It issues DISABLE_ALL (ignoring the result — there is nothing further
// to do if the monitor has already gone away) and closes both pipe ends.
// StartMonitor after Shutdown starts a fresh monitor and context.
func Shutdown() {
	ctx := getContext()
	if ctx == nil {
		return
	}

	_ = DisableAll()

	ctx.reqW.Close()
	ctx.respR.Close()

	setContext(nil)
	bootstrapOnce = sync.Once{}
}
