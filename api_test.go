package dyndbg

import (
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/zotley/dyndbg/internal/wire"
)

// fakeMonitor stands in for the real monitor process: it speaks the exact
// wire protocol over a pair of pipes but tracks "hardware" state as a
// plain Go slice instead of touching DR6/DR7, so these tests exercise
// api.go's logic (slot accounting, idempotence, error propagation)
// without ptrace, a real fork, or root privileges.
type fakeMonitor struct {
	mu    sync.Mutex
	slots [4]*wire.Quad // nil == free
}

func newTestContext(t *testing.T) *context {
	t.Helper()

	reqR, reqW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}

	fm := &fakeMonitor{}
	go fm.run(t, reqR, respW)

	t.Cleanup(func() {
		reqW.Close()
		respR.Close()
	})

	log := logrus.NewEntry(logrus.New())
	ctx := &context{
		monitorPID:  0,
		inferiorPID: os.Getpid(),
		progName:    "test",
		reqW:        reqW,
		respR:       respR,
		head:        nil,
		log:         log,
	}
	return ctx
}

func (fm *fakeMonitor) run(t *testing.T, reqR *os.File, respW *os.File) {
	defer reqR.Close()
	defer respW.Close()
	for {
		req, err := wire.ReadRequest(reqR)
		if err != nil {
			return
		}
		resp := fm.handle(req)
		if err := wire.WriteResponse(respW, resp); err != nil {
			return
		}
	}
}

func (fm *fakeMonitor) handle(req wire.Request) wire.Response {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	switch req.Op {
	case wire.OpEnable:
		for i, s := range fm.slots {
			if s == nil {
				q := req.Quad
				fm.slots[i] = &q
				return wire.Response{Result: wire.ResultSuccess, Quad: req.Quad}
			}
		}
		return wire.Response{Result: wire.ResultAllSlotsBusy}
	case wire.OpDisable:
		for i, s := range fm.slots {
			if s != nil && *s == req.Quad {
				fm.slots[i] = nil
				return wire.Response{Result: wire.ResultSuccess}
			}
		}
		return wire.Response{Result: wire.ResultSlotNotFound}
	case wire.OpDisableAll:
		for i := range fm.slots {
			fm.slots[i] = nil
		}
		return wire.Response{Result: wire.ResultSuccess}
	case wire.OpGetTriggered:
		return wire.Response{Result: wire.ResultNoTrigger}
	default:
		return wire.Response{Result: wire.ResultUnknownOp}
	}
}

func (fm *fakeMonitor) enabledCount() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	n := 0
	for _, s := range fm.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func withTestContext(t *testing.T) *context {
	t.Helper()
	ctx := newTestContext(t)
	setContext(ctx)
	t.Cleanup(func() { setContext(nil) })
	return ctx
}

func TestAddEnablesAndLinksAtHead(t *testing.T) {
	ctx := withTestContext(t)

	var bp Watchpoint
	cb := func(*Watchpoint) {}
	res := Add(&bp, 0x1000, KindWriteData, 1, cb, nil, true)
	if res != ResultSuccess {
		t.Fatalf("Add = %v, want success", res)
	}
	if ctx.head != &bp {
		t.Fatal("Add did not link the watchpoint at the head of the list")
	}
	if !bp.Enabled {
		t.Fatal("Add did not enable the watchpoint")
	}
	if Find(0x1000, KindWriteData, 1, false) != &bp {
		t.Fatal("Find did not locate the added watchpoint")
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	withTestContext(t)

	var a, b Watchpoint
	cb := func(*Watchpoint) {}
	if res := Add(&a, 0x2000, KindExecute, 1, cb, nil, true); res != ResultSuccess {
		t.Fatalf("first Add = %v", res)
	}
	if res := Add(&b, 0x2000, KindExecute, 1, cb, nil, true); res != ResultInvalidArgument {
		t.Fatalf("duplicate Add = %v, want ResultInvalidArgument", res)
	}
}

func TestAddRejectsSoftwareWatchpoints(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	res := Add(&bp, 0x3000, KindExecute, 1, func(*Watchpoint) {}, nil, false)
	if res != ResultSWNotImplemented {
		t.Fatalf("Add hw=false = %v, want ResultSWNotImplemented", res)
	}
}

func TestAddRejectsNilCallback(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	res := Add(&bp, 0x3100, KindExecute, 1, nil, nil, true)
	if res != ResultSWNotImplemented {
		t.Fatalf("Add cb=nil = %v, want ResultSWNotImplemented", res)
	}
}

func TestAddRejectsNilWatchpoint(t *testing.T) {
	withTestContext(t)

	res := Add(nil, 0x3200, KindExecute, 1, func(*Watchpoint) {}, nil, true)
	if res != ResultInvalidArgument {
		t.Fatalf("Add bp=nil = %v, want ResultInvalidArgument", res)
	}
}

func TestAtMostFourSlots(t *testing.T) {
	withTestContext(t)

	var bps [5]Watchpoint
	cb := func(*Watchpoint) {}
	for i := 0; i < 4; i++ {
		res := Add(&bps[i], uint64(0x4000+i), KindWriteData, 1, cb, nil, true)
		if res != ResultSuccess {
			t.Fatalf("Add #%d = %v, want success", i, res)
		}
	}
	res := Add(&bps[4], 0x4100, KindWriteData, 1, cb, nil, true)
	if res != ResultAllHWSlotsBusy {
		t.Fatalf("5th Add = %v, want ResultAllHWSlotsBusy", res)
	}
}

func TestRoundTripAddRemove(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	cb := func(*Watchpoint) {}
	if res := Add(&bp, 0x5000, KindRdWrData, 2, cb, nil, true); res != ResultSuccess {
		t.Fatalf("Add = %v", res)
	}
	if res := Remove(&bp); res != ResultSuccess {
		t.Fatalf("first Remove = %v, want success", res)
	}
	if res := Remove(&bp); res != ResultHWSlotNotFound {
		t.Fatalf("second Remove = %v, want ResultHWSlotNotFound", res)
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	cb := func(*Watchpoint) {}
	if res := Add(&bp, 0x6000, KindWriteData, 1, cb, nil, true); res != ResultSuccess {
		t.Fatalf("Add = %v", res)
	}
	if res := Enable(&bp); res != ResultSuccess {
		t.Fatalf("re-Enable = %v, want success (no-op)", res)
	}
}

func TestDisableIsIdempotent(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	if res := Disable(&bp); res != ResultSuccess {
		t.Fatalf("Disable on never-enabled bp = %v, want success (no-op)", res)
	}
}

func TestDisableUnknownHandle(t *testing.T) {
	withTestContext(t)

	var bp Watchpoint
	bp.Address, bp.Kind, bp.Width, bp.Enabled = 0x7000, KindExecute, 1, true
	res := Disable(&bp)
	if res != ResultHWSlotNotFound {
		t.Fatalf("Disable on unknown handle = %v, want ResultHWSlotNotFound", res)
	}
}

func TestDisableAllClearsEnabledFlags(t *testing.T) {
	withTestContext(t)

	var a, b Watchpoint
	cb := func(*Watchpoint) {}
	Add(&a, 0x8000, KindWriteData, 1, cb, nil, true)
	Add(&b, 0x8008, KindWriteData, 1, cb, nil, true)

	if res := DisableAll(); res != ResultSuccess {
		t.Fatalf("DisableAll = %v, want success", res)
	}
	if a.Enabled || b.Enabled {
		t.Fatal("DisableAll did not clear Enabled on tracked watchpoints")
	}
	if Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after DisableAll", Count())
	}
}

func TestListWatchpointsSnapshot(t *testing.T) {
	withTestContext(t)

	var a, b Watchpoint
	cb := func(*Watchpoint) {}
	Add(&a, 0x9000, KindWriteData, 1, cb, nil, true)
	Add(&b, 0x9008, KindWriteData, 1, cb, nil, true)

	all := ListWatchpoints()
	if len(all) != 2 {
		t.Fatalf("ListWatchpoints returned %d entries, want 2", len(all))
	}
}

func TestNoContextReturnsContextNotFound(t *testing.T) {
	setContext(nil)

	var bp Watchpoint
	if res := Add(&bp, 1, KindExecute, 1, func(*Watchpoint) {}, nil, true); res != ResultContextNotFound {
		t.Fatalf("Add with no context = %v, want ResultContextNotFound", res)
	}
	if res := Enable(&bp); res != ResultContextNotFound {
		t.Fatalf("Enable with no context = %v, want ResultContextNotFound", res)
	}
	if res := DisableAll(); res != ResultContextNotFound {
		t.Fatalf("DisableAll with no context = %v, want ResultContextNotFound", res)
	}
}
