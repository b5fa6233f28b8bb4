package dyndbg

import "github.com/zotley/dyndbg/internal/wire"

// Add registers bp as a live watchpoint and immediately enables it in
// hardware. bp must be non-nil and must not already be tracked (by
// (Address, Kind, Width)); hw must be true, since software watchpoints
// are not implemented (see ResultSWNotImplemented). On success bp is
// linked at the head of the process's watchpoint list and Enable has
// already run against it — the caller gets back its own result, not an
// implicit "added but still disabled" state.
func Add(bp *Watchpoint, address uint64, kind Kind, width int, cb func(*Watchpoint), arg any, hw bool) Result {
	if bp == nil {
		return ResultInvalidArgument
	}
	if !hw || cb == nil {
		return ResultSWNotImplemented
	}
	ctx := getContext()
	if ctx == nil {
		return ResultContextNotFound
	}

	ctx.mu.Lock()
	if ctx.find(address, kind, width) != nil {
		ctx.mu.Unlock()
		return ResultInvalidArgument
	}
	bp.Address = address
	bp.Kind = kind
	bp.Width = width
	bp.HW = hw
	bp.Enabled = false
	bp.Callback = cb
	bp.CallbackArg = arg
	bp.next = ctx.head
	ctx.head = bp
	ctx.mu.Unlock()

	return enableLocked(ctx, bp)
}

// Find does a linear scan for the watchpoint matching (address, kind,
// width). If verbose is true and nothing matches, the current table is
// logged at debug level before returning nil.
func Find(address uint64, kind Kind, width int, verbose bool) *Watchpoint {
	ctx := getContext()
	if ctx == nil {
		return nil
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	bp := ctx.find(address, kind, width)
	if bp == nil && verbose {
		dumpTable(ctx)
	}
	return bp
}

func dumpTable(ctx *context) {
	for w := ctx.head; w != nil; w = w.next {
		ctx.log.WithFields(map[string]any{
			"address": w.Address,
			"kind":    w.Kind,
			"width":   w.Width,
			"enabled": w.Enabled,
		}).Debug("watchpoint table entry")
	}
}

// Remove disables bp (errors from the disable are ignored — removal
// proceeds regardless) and unlinks it from the list, matching on
// (Address, Kind, Width) rather than pointer identity to tolerate a
// stale handle. Returns ResultHWSlotNotFound if no matching entry is
// linked.
func Remove(bp *Watchpoint) Result {
	if bp == nil {
		return ResultInvalidArgument
	}
	ctx := getContext()
	if ctx == nil {
		return ResultContextNotFound
	}

	_ = Disable(bp)

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	var prev *Watchpoint
	for w := ctx.head; w != nil; w = w.next {
		if !w.matches(bp.Address, bp.Kind, bp.Width) {
			prev = w
			continue
		}
		if prev == nil {
			ctx.head = w.next
		} else {
			prev.next = w.next
		}
		w.next = nil
		return ResultSuccess
	}
	return ResultHWSlotNotFound
}

// Enable arms bp in hardware. A no-op returning ResultSuccess if bp is
// already enabled. Fails with ResultAllHWSlotsBusy if all four DR slots
// are already occupied by other watchpoints.
func Enable(bp *Watchpoint) Result {
	if bp == nil {
		return ResultInvalidArgument
	}
	ctx := getContext()
	if ctx == nil {
		return ResultContextNotFound
	}
	return enableLocked(ctx, bp)
}

func enableLocked(ctx *context, bp *Watchpoint) Result {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if bp.Enabled {
		return ResultSuccess
	}

	resp := ctx.exchange(wire.Request{
		Op: wire.OpEnable,
		Quad: wire.Quad{
			Address: bp.Address,
			Kind:    kindToWireKind(bp.Kind),
			Width:   widthToWire(bp.Width),
			HW:      bp.HW,
		},
	})
	if commFailed(resp) {
		return ResultMonitorCommFailure
	}

	result := wireResultToResult(resp.Result)
	if result == ResultSuccess {
		bp.Enabled = true
	}
	return result
}

// Disable clears bp in hardware. A no-op returning ResultSuccess if bp
// is already disabled.
func Disable(bp *Watchpoint) Result {
	if bp == nil {
		return ResultInvalidArgument
	}
	ctx := getContext()
	if ctx == nil {
		return ResultContextNotFound
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if !bp.Enabled {
		return ResultSuccess
	}

	resp := ctx.exchange(wire.Request{
		Op: wire.OpDisable,
		Quad: wire.Quad{
			Address: bp.Address,
			Kind:    kindToWireKind(bp.Kind),
			Width:   widthToWire(bp.Width),
			HW:      bp.HW,
		},
	})
	if commFailed(resp) {
		return ResultMonitorCommFailure
	}

	result := wireResultToResult(resp.Result)
	if result == ResultSuccess {
		bp.Enabled = false
	}
	return result
}

// DisableAll sends a single DISABLE_ALL request; on success it walks the
// list and clears every watchpoint's Enabled flag.
func DisableAll() Result {
	ctx := getContext()
	if ctx == nil {
		return ResultContextNotFound
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	resp := ctx.exchange(wire.Request{Op: wire.OpDisableAll})
	if commFailed(resp) {
		return ResultMonitorCommFailure
	}

	result := wireResultToResult(resp.Result)
	if result == ResultSuccess {
		for w := ctx.head; w != nil; w = w.next {
			w.Enabled = false
		}
	}
	return result
}

// ListWatchpoints returns a snapshot slice of every currently-tracked
// watchpoint, head to tail. The returned slice is a copy of the pointers
// in the list, not of the records themselves.
func ListWatchpoints() []*Watchpoint {
	ctx := getContext()
	if ctx == nil {
		return nil
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	var out []*Watchpoint
	for w := ctx.head; w != nil; w = w.next {
		out = append(out, w)
	}
	return out
}

// Count returns the number of watchpoints currently enabled in hardware.
func Count() int {
	ctx := getContext()
	if ctx == nil {
		return 0
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	n := 0
	for w := ctx.head; w != nil; w = w.next {
		if w.Enabled {
			n++
		}
	}
	return n
}

func widthToWire(n int) wire.Width {
	w, ok := wire.WidthFromBytes(n)
	if !ok {
		return wire.Width1
	}
	return w
}

func wireResultToResult(r wire.Result) Result {
	switch r {
	case wire.ResultSuccess:
		return ResultSuccess
	case wire.ResultAllSlotsBusy:
		return ResultAllHWSlotsBusy
	case wire.ResultSlotNotFound:
		return ResultHWSlotNotFound
	case wire.ResultNoTrigger:
		return ResultSuccess
	case wire.ResultUnknownOp:
		return ResultMonitorRequestUnknown
	case wire.ResultErrno:
		return ResultSystemError
	default:
		return ResultSystemError
	}
}
