package dyndbg

import "fmt"

// Result is the outcome of a dyndbg API call. It implements error so
// callers can treat any non-success Result as an error directly, and
// supports errors.Is against the package-level sentinels below.
type Result int

const (
	ResultSuccess Result = iota
	ResultContextNotFound
	ResultInvalidArgument
	ResultAllHWSlotsBusy
	ResultSWNotImplemented
	ResultHWSlotNotFound
	ResultBPAlreadyExists
	ResultMonitorRequestFailure
	ResultMonitorResponseFailure
	ResultMonitorCommFailure
	ResultMonitorRequestUnknown
	ResultSystemError
)

var resultNames = map[Result]string{
	ResultSuccess:                "success",
	ResultContextNotFound:        "context-not-found",
	ResultInvalidArgument:        "invalid-argument",
	ResultAllHWSlotsBusy:         "all-hw-slots-busy",
	ResultSWNotImplemented:       "sw-not-implemented",
	ResultHWSlotNotFound:         "hw-slot-not-found",
	ResultBPAlreadyExists:        "bp-already-exists",
	ResultMonitorRequestFailure:  "monitor-request-failure",
	ResultMonitorResponseFailure: "monitor-response-failure",
	ResultMonitorCommFailure:     "monitor-comm-failure",
	ResultMonitorRequestUnknown:  "monitor-request-unknown",
	ResultSystemError:            "system-error",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Error satisfies the error interface. ResultSuccess still has an Error
// string (for uniformity with fmt/%v) but callers should check
// r == ResultSuccess or r.OK(), not treat every Result as failed.
func (r Result) Error() string { return r.String() }

// OK reports whether r represents success.
func (r Result) OK() bool { return r == ResultSuccess }

// Exported sentinels for errors.Is-style comparison, one per Result.
var (
	ErrContextNotFound        = ResultContextNotFound
	ErrInvalidArgument        = ResultInvalidArgument
	ErrAllHWSlotsBusy         = ResultAllHWSlotsBusy
	ErrSWNotImplemented       = ResultSWNotImplemented
	ErrHWSlotNotFound         = ResultHWSlotNotFound
	ErrBPAlreadyExists        = ResultBPAlreadyExists
	ErrMonitorRequestFailure  = ResultMonitorRequestFailure
	ErrMonitorResponseFailure = ResultMonitorResponseFailure
	ErrMonitorCommFailure     = ResultMonitorCommFailure
	ErrMonitorRequestUnknown  = ResultMonitorRequestUnknown
	ErrSystemError            = ResultSystemError
)
