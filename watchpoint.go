package dyndbg

// Kind classifies a watchpoint by the kind of access that triggers it.
// The numeric values are bit-exact with the DR7 R/W field — see
// internal/debugreg — and must not be renumbered.
type Kind uint8

const (
	KindExecute Kind = iota
	KindWriteData
	KindIORdWr
	KindRdWrData
)

func (k Kind) String() string {
	switch k {
	case KindExecute:
		return "execute"
	case KindWriteData:
		return "write-data"
	case KindIORdWr:
		return "io-rdwr"
	case KindRdWrData:
		return "rdwr-data"
	default:
		return "unknown"
	}
}

// Watchpoint is a record owned by the caller: the caller allocates it
// (typically as a package-level var or a field in a longer-lived struct)
// and passes a pointer to Add; the core never allocates or frees a
// Watchpoint itself. Among live watchpoints the triple
// (Address, Kind, Width) is unique — see Add.
type Watchpoint struct {
	Address uint64
	Kind    Kind
	Width   int // one of 1, 2, 4, 8 bytes
	HW      bool
	Enabled bool

	// Callback is invoked when the watchpoint fires. It receives the
	// watchpoint that triggered and runs on the SIGTRAP dispatch
	// goroutine started by installSigtrapHandler, after the GET_TRIGGERED
	// exchange has finished and ctx.mu has been released; it does not run
	// on the faulting thread's signal stack. Further traps are not
	// dispatched until it returns.
	Callback func(*Watchpoint)

	// CallbackArg is opaque context stored but never interpreted by the
	// core; it is handed back to the caller only via the Watchpoint
	// itself (the caller reads bp.CallbackArg inside its own callback).
	CallbackArg any

	next *Watchpoint // intrusive link into the process-wide list
}

func (w *Watchpoint) matches(address uint64, kind Kind, width int) bool {
	return w.Address == address && w.Kind == kind && w.Width == width
}
