package monitor

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Serve renames the current task, installs the child-status supervisor,
// and runs the request loop until the session ends. It never returns
// early; the caller (monitor_entry.go's init, in the re-executed monitor
// process) exits the process immediately when Serve returns.
func Serve(progName string, inferiorTID int, reqR, respW *os.File, log *logrus.Entry) {
	Rename(progName, inferiorTID, log)
	loop := New(inferiorTID, reqR, respW, log)
	SuperviseChild(inferiorTID, loop, log)
	loop.Run()
}
