package dyndbg

import (
	"os"
	"strconv"

	"github.com/zotley/dyndbg/internal/monitor"
)

// init runs before any host application main(), in every process that
// imports this package — including the re-exec'd monitor child. If the
// monitor environment sentinel is present, this process IS the monitor
// half of a split: it runs the request loop and exits without ever
// reaching the host application's main(). See bootstrap.go for why a
// re-exec is used instead of a raw fork(2).
func init() {
	pidStr, ok := os.LookupEnv(envInferiorPID)
	if !ok {
		return
	}
	inferiorPID, err := strconv.Atoi(pidStr)
	if err != nil {
		// Malformed sentinel: behave as an ordinary inferior process
		// rather than silently vanishing into a monitor loop for an
		// unparseable target.
		return
	}
	progName := os.Getenv(envProgName)

	reqR := os.NewFile(reqPipeFD, "dyndbg-request-pipe")
	respW := os.NewFile(respPipeFD, "dyndbg-response-pipe")
	if reqR == nil || respW == nil {
		os.Exit(1)
	}

	_ = os.Stdin.Close()

	log := packageLogger().WithField("role", "monitor")
	monitor.Serve(progName, inferiorPID, reqR, respW, log)
	os.Exit(0)
}
