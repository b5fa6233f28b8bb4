package monitor

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Rename builds the name dyndbg_monitor_<progname>:<tid> (§4.B) and sets
// it as the monitor task's comm. The comm holds at most 15 bytes and the
// fixed prefix dyndbg_monitor_ is itself 15 bytes, so the name stored is
// that prefix alone; the program name and tid are cut off. Failure is
// best-effort: logged, never fatal, mirroring the
// teacher's own stance on cosmetic OS calls (coprocessor worker renames
// in coprocessor_manager.go follow the same "log and move on" rule).
func Rename(progName string, inferiorTID int, log *logrus.Entry) {
	name := fmt.Sprintf("dyndbg_monitor_%s:%d", progName, inferiorTID)
	if len(name) > 15 {
		name = name[:15] // PR_SET_NAME truncates to TASK_COMM_LEN-1 anyway
	}
	b := append([]byte(name), 0)
	if err := unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0); err != nil {
		log.WithError(err).Warn("failed to rename monitor task")
	}
}
