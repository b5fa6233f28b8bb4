package monitor

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// SuperviseChild installs a SIGCHLD handler that, on delivery,
// non-blockingly reaps tid and marks l interrupted if the inferior has
// exited or core-dumped (§4.B). It runs for the lifetime of the process;
// there is no corresponding Stop because the monitor process exits when
// the inferior does.
func SuperviseChild(tid int, l *Loop, log *logrus.Entry) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGCHLD)
	go func() {
		for range ch {
			var ws unix.WaitStatus
			_, err := unix.Wait4(tid, &ws, unix.WNOHANG, nil)
			if err != nil {
				continue
			}
			if ws.Exited() || ws.CoreDump() {
				log.WithFields(logrus.Fields{
					"exited":   ws.Exited(),
					"coreDump": ws.CoreDump(),
					"exitCode": ws.ExitStatus(),
				}).Info("inferior terminated, shutting down monitor")
				l.MarkInterrupted()
			}
		}
	}()
}
