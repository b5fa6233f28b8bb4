package dyndbg

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/zotley/dyndbg/internal/wire"
)

// installSigtrapHandler starts the goroutine that dispatches SIGTRAP per
// §4.C.2: on each trap, ask the monitor what fired, find the matching
// watchpoint in ctx's list, and invoke its callback.
func installSigtrapHandler(ctx *context) {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, syscall.SIGTRAP)
	go func() {
		for range ch {
			handleSigtrap(ctx)
		}
	}()
}

// handleSigtrap issues its own GET_TRIGGERED exchange. It holds ctx.mu
// for the duration of the pipe round trip, the same lock api.go's
// operations hold across their own exchange plus list mutation — so a
// SIGTRAP arriving mid-ENABLE simply waits its turn rather than
// interleaving a second request onto the pipes (§9).
func handleSigtrap(ctx *context) {
	ctx.mu.Lock()
	resp := ctx.exchange(wire.Request{Op: wire.OpGetTriggered})
	ctx.mu.Unlock()

	if commFailed(resp) {
		ctx.log.Warn("SIGTRAP received but GET_TRIGGERED failed to reach the monitor")
		return
	}
	switch resp.Result {
	case wire.ResultNoTrigger:
		ctx.log.Debug("SIGTRAP received but monitor reports no Bi set, ignoring")
		return
	case wire.ResultSuccess:
	default:
		ctx.log.WithField("result", resp.Result).Warn("GET_TRIGGERED returned an unexpected result")
		return
	}

	address := resp.Quad.Address
	kind := wireKindToKind(resp.Quad.Kind)
	width := wire.WidthBytes(resp.Quad.Width)

	ctx.mu.Lock()
	bp := ctx.find(address, kind, width)
	ctx.mu.Unlock()

	if bp == nil {
		ctx.log.WithFields(map[string]any{
			"address": address,
			"kind":    kind,
			"width":   width,
		}).Warn("SIGTRAP matched no known watchpoint")
		return
	}
	if bp.Callback != nil {
		bp.Callback(bp)
	}
}

func wireKindToKind(k wire.Kind) Kind {
	switch k {
	case wire.KindExecute:
		return KindExecute
	case wire.KindWrite:
		return KindWriteData
	case wire.KindIORdWr:
		return KindIORdWr
	case wire.KindRdWr:
		return KindRdWrData
	default:
		return KindExecute
	}
}

func kindToWireKind(k Kind) wire.Kind {
	switch k {
	case KindExecute:
		return wire.KindExecute
	case KindWriteData:
		return wire.KindWrite
	case KindIORdWr:
		return wire.KindIORdWr
	case KindRdWrData:
		return wire.KindRdWr
	default:
		return wire.KindExecute
	}
}
