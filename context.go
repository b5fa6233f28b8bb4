package dyndbg

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zotley/dyndbg/internal/wire"
)

// context is the process-wide singleton of §3: one per inferior process,
// created by StartMonitor and cleared only by Shutdown.
type context struct {
	monitorPID  int
	inferiorPID int
	progName    string

	reqW  *os.File // inferior writes requests here
	respR *os.File // inferior reads responses here

	mu   sync.Mutex // guards head and the pipe exchange together
	head *Watchpoint

	log *logrus.Entry
}

var (
	globalCtx   *context
	globalCtxMu sync.Mutex
)

// getContext returns the singleton, or nil if bootstrap has not run yet.
func getContext() *context {
	globalCtxMu.Lock()
	defer globalCtxMu.Unlock()
	return globalCtx
}

func setContext(c *context) {
	globalCtxMu.Lock()
	defer globalCtxMu.Unlock()
	globalCtx = c
}

// exchange implements §4.C.1: write one request, read one response,
// strictly serial. Callers (ordinary API code and the SIGTRAP handler)
// both funnel through here; the caller must hold c.mu for the duration
// of the call — the same lock that guards the watchpoint list — so a
// SIGTRAP arriving mid-exchange waits its turn instead of interleaving a
// second request onto the pipes (§9).
func (c *context) exchange(req wire.Request) wire.Response {
	if err := wire.WriteRequest(c.reqW, req); err != nil {
		c.log.WithError(err).Warn("short write on request pipe")
		return wire.Response{Result: wire.ResultErrno}
	}
	resp, err := wire.ReadResponse(c.respR)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			c.log.Warn("monitor pipe closed, session is over")
		} else {
			c.log.WithError(err).Warn("short read on response pipe")
		}
		return wire.Response{Result: wire.ResultErrno}
	}
	return resp
}

// find walks the intrusive list looking for the watchpoint matching the
// given triple. Callers must hold c.mu.
func (c *context) find(address uint64, kind Kind, width int) *Watchpoint {
	for w := c.head; w != nil; w = w.next {
		if w.matches(address, kind, width) {
			return w
		}
	}
	return nil
}

// commFailed reports whether resp represents a pipe-level communication
// failure rather than a monitor-issued result (exchange returns
// wire.ResultErrno with no further detail for both; the client maps it
// to ResultMonitorCommFailure, since at the client/monitor boundary a
// pipe failure and an unreported errno are indistinguishable without a
// side channel the protocol doesn't have).
func commFailed(resp wire.Response) bool {
	return resp.Result == wire.ResultErrno && resp.Errno == 0
}
