package dyndbg

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// envInferiorPID, when set in the environment, marks this process as the
// monitor half of a dyndbg split: see init() below. Its value is the pid
// of the inferior that spawned it. envProgName carries the program name
// used for the monitor's rename (§4.B).
//
// Go's runtime explicitly disallows the C idiom this component is
// modeled on — calling the raw fork(2) syscall in a process with more
// than one OS thread leaves the child's runtime (scheduler, allocator,
// signal machinery) in an unspecified state, and any non-trivial Go
// binary is multi-threaded by the time main() runs. The monitor side of
// the split is instead obtained by re-executing the inferior's own
// binary as a fresh child process that, at package-init time, recognizes
// it was launched to be the monitor and never proceeds to the host
// application's main() at all. This reproduces the observable contract
// of §4.D exactly — the monitor side never returns to the caller (it IS
// a caller in a different process) and never runs ordinary inferior
// code — without the Go-runtime hazard. See DESIGN.md.
const (
	envInferiorPID = "_DYNDBG_INFERIOR_PID"
	envProgName    = "_DYNDBG_PROG_NAME"
)

// reqPipeFD and respPipeFD are the fixed file descriptor numbers the
// monitor child inherits its pipe ends on, via exec.Cmd.ExtraFiles
// (which always starts at fd 3).
const (
	reqPipeFD  = 3
	respPipeFD = 4
)

var (
	bootstrapOnce   sync.Once
	bootstrapResult Result
)

// StartMonitor is the sole entry point of component D. On the first call
// in a process it splits the process in two: the monitor side never
// returns (see envInferiorPID above), and the inferior side returns
// ResultSuccess having installed its SIGTRAP handler and its singleton
// context. Subsequent calls return whatever the first call returned,
// without forking again.
func StartMonitor() Result {
	bootstrapOnce.Do(func() {
		bootstrapResult = startMonitorOnce()
	})
	return bootstrapResult
}

func startMonitorOnce() Result {
	log := packageLogger()

	reqR, reqW, err := os.Pipe()
	if err != nil {
		log.WithError(err).Error("failed to create request pipe")
		return ResultContextNotFound
	}
	respR, respW, err := os.Pipe()
	if err != nil {
		log.WithError(err).Error("failed to create response pipe")
		return ResultContextNotFound
	}

	progName := filepath.Base(os.Args[0])
	selfPath, err := os.Executable()
	if err != nil {
		selfPath = os.Args[0]
	}

	cmd := exec.Command(selfPath, os.Args[1:]...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", envInferiorPID, os.Getpid()),
		fmt.Sprintf("%s=%s", envProgName, progName),
	)
	cmd.ExtraFiles = []*os.File{reqR, respW} // fd 3, fd 4 in the child
	cmd.Stdin = nil                          // monitor closes its stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("failed to spawn monitor process")
		reqR.Close()
		reqW.Close()
		respR.Close()
		respW.Close()
		return ResultContextNotFound
	}

	// The inferior doesn't use these ends; the monitor child inherited
	// its own copies across exec.
	reqR.Close()
	respW.Close()

	go reapMonitor(cmd)

	ctx := &context{
		monitorPID:  cmd.Process.Pid,
		inferiorPID: os.Getpid(),
		progName:    progName,
		reqW:        reqW,
		respR:       respR,
		log:         log.WithField("component", "client"),
	}
	setContext(ctx)

	installSigtrapHandler(ctx)

	return ResultSuccess
}

// reapMonitor prevents the monitor from becoming a zombie once it exits;
// the inferior has no other use for its exit status.
func reapMonitor(cmd *exec.Cmd) {
	_ = cmd.Wait()
}

var (
	loggerMu sync.Mutex
	logger   = logrus.StandardLogger()
)

// SetLogger lets a host application redirect dyndbg's own diagnostic
// logging (attach/detach failures, short reads, etc. per §4.B/§7) into
// its own logging pipeline instead of logrus's default stderr output.
func SetLogger(l *logrus.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func packageLogger() *logrus.Entry {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()
	return l.WithField("pkg", "dyndbg")
}
