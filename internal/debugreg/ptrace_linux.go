//go:build linux

package debugreg

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// u_debugregOffset is offsetof(struct user, u_debugreg) on linux/amd64:
// regs (216) + u_fpvalid+pad (8) + i387 (512) + u_tsize/u_dsize/u_ssize
// (24) + start_code/start_stack (16) + signal (8) + reserved+pad (8) +
// u_ar0 (8) + u_fpstate (8) + magic (8) + u_comm[32] (32) = 848.
// golang.org/x/sys/unix does not expose this as a named constant for
// PTRACE_PEEKUSER/POKEUSER, so it is pinned here the way aarzilli-delve's
// cgo `offsetof(struct user, u_debugreg[reg])` helper pins it — except
// computed once, by hand, instead of through cgo.
const u_debugregOffset = 848

const debugregWordSize = 8

// userOffset returns the PTRACE_PEEKUSER/POKEUSER offset for reg.
func userOffset(reg Reg) (uintptr, error) {
	idx, ok := reg.index()
	if !ok {
		return 0, errors.Errorf("debugreg: invalid register %d", reg)
	}
	return uintptr(u_debugregOffset + idx*debugregWordSize), nil
}

// Peek reads the named debug register from task tid. tid must already be
// ptrace-attached and stopped; the kernel rejects PEEKUSER otherwise.
func Peek(tid int, reg Reg) (uint64, error) {
	off, err := userOffset(reg)
	if err != nil {
		return 0, err
	}
	var buf [debugregWordSize]byte
	if _, err := unix.PtracePeekUser(tid, off, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "debugreg: PEEKUSER tid=%d reg=%v", tid, reg)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Poke writes value into the named debug register on task tid.
func Poke(tid int, reg Reg, value uint64) error {
	off, err := userOffset(reg)
	if err != nil {
		return err
	}
	var buf [debugregWordSize]byte
	binary.NativeEndian.PutUint64(buf[:], value)
	if _, err := unix.PtracePokeUser(tid, off, buf[:]); err != nil {
		return errors.Wrapf(err, "debugreg: POKEUSER tid=%d reg=%v", tid, reg)
	}
	return nil
}

// ReadControl reads and decodes DR7.
func ReadControl(tid int) (Control, error) {
	raw, err := Peek(tid, DR7)
	if err != nil {
		return Control{}, err
	}
	return DecodeControl(raw)
}

// WriteControl encodes and writes DR7.
func WriteControl(tid int, c Control) error {
	return Poke(tid, DR7, EncodeControl(c))
}

// ReadStatus reads and decodes DR6.
func ReadStatus(tid int) (Status, error) {
	raw, err := Peek(tid, DR6)
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(raw)
}

// WriteStatus encodes and writes DR6.
func WriteStatus(tid int, s Status) error {
	return Poke(tid, DR6, EncodeStatus(s))
}

// Attach issues PTRACE_ATTACH on tid, which stops the task.
func Attach(tid int) error {
	if err := unix.PtraceAttach(tid); err != nil {
		return errors.Wrapf(err, "debugreg: PTRACE_ATTACH tid=%d", tid)
	}
	return nil
}

// WaitStopped blocks until tid reports a stop state following Attach.
// A single blocking wait4, per §9's recommendation over the reference's
// bounded non-blocking probe loop.
func WaitStopped(tid int) error {
	var ws unix.WaitStatus
	_, err := unix.Wait4(tid, &ws, 0, nil)
	if err != nil {
		return errors.Wrapf(err, "debugreg: wait4 tid=%d", tid)
	}
	if !ws.Stopped() {
		return errors.Errorf("debugreg: tid=%d did not stop (status=%v)", tid, ws)
	}
	return nil
}

// Detach issues PTRACE_DETACH on tid, which resumes it.
func Detach(tid int) error {
	if err := unix.PtraceDetach(tid); err != nil {
		return errors.Wrapf(err, "debugreg: PTRACE_DETACH tid=%d", tid)
	}
	return nil
}

// IsNoSuchProcess reports whether err wraps ESRCH, the errno the kernel
// returns for an attach/detach target that has already exited.
func IsNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
