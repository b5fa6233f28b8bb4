// Package monitor implements the monitor side of the bootstrap split —
// component B of the design. It runs only inside the re-executed monitor
// process: dyndbg uses it only from monitor_entry.go's init, which calls
// Serve and then exits the process.
package monitor

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/zotley/dyndbg/internal/debugreg"
	"github.com/zotley/dyndbg/internal/wire"
)

// Loop is the monitor's request-dispatch state. One Loop instance
// services exactly one inferior task id for the lifetime of the process.
type Loop struct {
	tid  int
	req  io.Reader
	resp io.Writer

	log         *logrus.Entry
	interrupted atomic.Bool
}

// New constructs a Loop. reqR is the read end of the request pipe, respW
// the write end of the response pipe — both already oriented for the
// monitor side by the bootstrap (the inferior's ends are closed before
// this is called).
func New(tid int, reqR, respW *os.File, log *logrus.Entry) *Loop {
	return &Loop{tid: tid, req: reqR, resp: respW, log: log.WithField("component", "monitor")}
}

// Run services requests until a fatal condition sets interrupted. It
// returns only once the session is over; the caller (monitor_entry.go's
// init, via Serve) exits the process immediately afterward.
func (l *Loop) Run() {
	for !l.interrupted.Load() {
		req, err := wire.ReadRequest(l.req)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				l.log.Warn("short read on request pipe, resynchronizing")
				continue
			}
			if !errors.Is(err, io.EOF) {
				l.log.WithError(err).Warn("request pipe read failed")
			}
			l.interrupted.Store(true)
			return
		}
		l.handle(req)
	}
}

// MarkInterrupted is called by the SIGCHLD handler once it has observed
// the inferior exit or core-dump.
func (l *Loop) MarkInterrupted() {
	l.interrupted.Store(true)
}

// handle runs the attach/wait/service/detach/reply transaction of
// §4.B for a single request.
func (l *Loop) handle(req wire.Request) {
	if err := debugreg.Attach(l.tid); err != nil {
		if debugreg.IsNoSuchProcess(err) {
			l.interrupted.Store(true)
			return
		}
		l.log.WithError(err).Error("attach failed, terminating session")
		l.interrupted.Store(true)
		return
	}
	if err := debugreg.WaitStopped(l.tid); err != nil {
		l.log.WithError(err).Error("wait-for-stop failed, terminating session")
		l.interrupted.Store(true)
		return
	}

	resp := l.service(req)

	if err := debugreg.Detach(l.tid); err != nil {
		if debugreg.IsNoSuchProcess(err) {
			l.interrupted.Store(true)
			return
		}
		l.log.WithError(err).Error("detach failed, terminating session")
		l.interrupted.Store(true)
		return
	}

	if err := wire.WriteResponse(l.resp, resp); err != nil {
		l.log.WithError(err).Error("short write on response pipe, terminating session")
		l.interrupted.Store(true)
		return
	}
}

// service performs the register-level work of §4.B.1-4 with the
// inferior already attached and stopped. It never attaches or detaches.
func (l *Loop) service(req wire.Request) wire.Response {
	switch req.Op {
	case wire.OpEnable:
		return l.enable(req.Quad)
	case wire.OpDisable:
		return l.disable(req.Quad)
	case wire.OpDisableAll:
		return l.disableAll()
	case wire.OpGetTriggered:
		return l.getTriggered()
	default:
		l.log.WithField("op", req.Op).Warn("unrecognized operation")
		return wire.Response{Result: wire.ResultUnknownOp}
	}
}

func (l *Loop) errnoResponse(err error) wire.Response {
	return wire.Response{Result: wire.ResultErrno, Errno: int32(errnoOf(err))}
}

func (l *Loop) enable(q wire.Quad) wire.Response {
	ctrl, err := debugreg.ReadControl(l.tid)
	if err != nil {
		return l.errnoResponse(err)
	}
	slot := -1
	for i, s := range ctrl.Slots {
		if !s.Local {
			slot = i
			break
		}
	}
	if slot == -1 {
		return wire.Response{Result: wire.ResultAllSlotsBusy}
	}
	ctrl.Slots[slot] = debugreg.SlotControl{
		Local: true,
		RW:    wireRWtoDebugreg(q.Kind),
		Len:   wireLenToDebugreg(q.Width),
	}
	if err := debugreg.Poke(l.tid, slotAddrReg(slot), q.Address); err != nil {
		return l.errnoResponse(err)
	}
	if err := debugreg.WriteControl(l.tid, ctrl); err != nil {
		return l.errnoResponse(err)
	}
	return wire.Response{Result: wire.ResultSuccess, Quad: q}
}

func (l *Loop) disable(q wire.Quad) wire.Response {
	ctrl, err := debugreg.ReadControl(l.tid)
	if err != nil {
		return l.errnoResponse(err)
	}
	wantRW := wireRWtoDebugreg(q.Kind)
	wantLen := wireLenToDebugreg(q.Width)
	slot := -1
	for i, s := range ctrl.Slots {
		if !s.Local {
			continue
		}
		if s.RW != wantRW || s.Len != wantLen {
			continue
		}
		addr, err := debugreg.Peek(l.tid, slotAddrReg(i))
		if err != nil {
			return l.errnoResponse(err)
		}
		if addr != q.Address {
			continue
		}
		slot = i
		break
	}
	if slot == -1 {
		return wire.Response{Result: wire.ResultSlotNotFound}
	}
	ctrl.Slots[slot].Local = false
	if err := debugreg.WriteControl(l.tid, ctrl); err != nil {
		return l.errnoResponse(err)
	}
	return wire.Response{Result: wire.ResultSuccess}
}

func (l *Loop) disableAll() wire.Response {
	ctrl, err := debugreg.ReadControl(l.tid)
	if err != nil {
		return l.errnoResponse(err)
	}
	for i := range ctrl.Slots {
		ctrl.Slots[i].Local = false
	}
	if err := debugreg.WriteControl(l.tid, ctrl); err != nil {
		return l.errnoResponse(err)
	}
	return wire.Response{Result: wire.ResultSuccess}
}

func (l *Loop) getTriggered() wire.Response {
	status, err := debugreg.ReadStatus(l.tid)
	if err != nil {
		return l.errnoResponse(err)
	}
	if err := debugreg.Poke(l.tid, debugreg.DR6, debugreg.ClearedStatus()); err != nil {
		return l.errnoResponse(err)
	}
	ctrl, err := debugreg.ReadControl(l.tid)
	if err != nil {
		return l.errnoResponse(err)
	}
	for i, fired := range status.B {
		if !fired {
			continue
		}
		addr, err := debugreg.Peek(l.tid, slotAddrReg(i))
		if err != nil {
			return l.errnoResponse(err)
		}
		s := ctrl.Slots[i]
		return wire.Response{
			Result: wire.ResultSuccess,
			Quad: wire.Quad{
				Address: addr,
				Kind:    debugregRWtoWire(s.RW),
				Width:   debugregLenToWire(s.Len),
				HW:      true,
			},
		}
	}
	l.log.Debug("GET_TRIGGERED observed no Bi set in DR6")
	return wire.Response{Result: wire.ResultNoTrigger}
}

func slotAddrReg(i int) debugreg.Reg {
	return [4]debugreg.Reg{debugreg.DR0, debugreg.DR1, debugreg.DR2, debugreg.DR3}[i]
}

func wireRWtoDebugreg(k wire.Kind) debugreg.RW     { return debugreg.RW(k) }
func wireLenToDebugreg(w wire.Width) debugreg.Len  { return debugreg.Len(w) }
func debugregRWtoWire(rw debugreg.RW) wire.Kind    { return wire.Kind(rw) }
func debugregLenToWire(ln debugreg.Len) wire.Width { return wire.Width(ln) }
