package dyndbg

import "github.com/zotley/dyndbg/crashdump"

// InstallCrashHandler wires cb into the crashdump collaborator (§4.E,
// §6). dyndbg does not import crashdump for anything else — the monitor
// and client never fault on the inferior's behalf — so this is a thin
// pass-through kept here only because §6 lists install_crash_handler as
// part of this package's public surface.
func InstallCrashHandler(cb func(crashdump.Fault) bool) Result {
	if cb == nil {
		return ResultInvalidArgument
	}
	if err := crashdump.Install(cb); err != nil {
		return ResultSystemError
	}
	return ResultSuccess
}
