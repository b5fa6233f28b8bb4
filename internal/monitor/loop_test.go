package monitor

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/zotley/dyndbg/internal/debugreg"
	"github.com/zotley/dyndbg/internal/wire"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(bytes.NewBuffer(nil))
	return logrus.NewEntry(l)
}

func TestRunStopsCleanlyOnEOF(t *testing.T) {
	req := bytes.NewReader(nil) // immediate EOF, no bytes at all
	var resp bytes.Buffer

	l := &Loop{tid: 1, req: req, resp: &resp, log: discardLogger()}
	l.Run()

	if !l.interrupted.Load() {
		t.Fatal("Run did not mark the loop interrupted on EOF")
	}
}

func TestServiceRejectsUnknownOp(t *testing.T) {
	l := &Loop{tid: 1, log: discardLogger()}
	resp := l.service(wire.Request{Op: wire.Op(99)})
	if resp.Result != wire.ResultUnknownOp {
		t.Fatalf("service(unknown op) = %v, want ResultUnknownOp", resp.Result)
	}
}

func TestWireDebugregConversionsRoundTrip(t *testing.T) {
	kinds := []wire.Kind{wire.KindExecute, wire.KindWrite, wire.KindIORdWr, wire.KindRdWr}
	for _, k := range kinds {
		if got := debugregRWtoWire(wireRWtoDebugreg(k)); got != k {
			t.Errorf("RW round trip: %v -> %v", k, got)
		}
	}
	widths := []wire.Width{wire.Width1, wire.Width2, wire.Width4, wire.Width8}
	for _, w := range widths {
		if got := debugregLenToWire(wireLenToDebugreg(w)); got != w {
			t.Errorf("Len round trip: %v -> %v", w, got)
		}
	}
}

func TestSlotAddrRegCoversAllFourSlots(t *testing.T) {
	want := []debugreg.Reg{debugreg.DR0, debugreg.DR1, debugreg.DR2, debugreg.DR3}
	for i, reg := range want {
		if slotAddrReg(i) != reg {
			t.Errorf("slotAddrReg(%d) = %v, want %v", i, slotAddrReg(i), reg)
		}
	}
}
