// Command dyndbgdemo exercises the dyndbg library end to end: the watch
// subcommand arms a hardware watchpoint on a byte inside a buffer a
// background goroutine mutates and reports every trigger; the crash
// subcommand installs the crash collaborator and then deliberately
// dereferences a nil pointer inside crashdump.Guard, so the fault arrives
// as a recovered Go runtime panic and goes through the installed handler.
package main

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zotley/dyndbg"
	"github.com/zotley/dyndbg/crashdump"
)

func main() {
	root := &cobra.Command{
		Use:   "dyndbgdemo",
		Short: "Exercises the dyndbg hardware watchpoint library",
	}
	root.AddCommand(newWatchCmd(), newCrashCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newWatchCmd() *cobra.Command {
	var width int
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Arm a watchpoint on a buffer and report triggers until a key is pressed",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}

			logrus.SetLevel(logrus.InfoLevel)
			dyndbg.SetLogger(logrus.StandardLogger())

			if res := dyndbg.StartMonitor(); !res.OK() {
				return fmt.Errorf("start monitor: %w", res)
			}

			data := make([]byte, 1024)
			var fires int
			bp := &dyndbg.Watchpoint{}

			res := dyndbg.Add(bp, uint64(uintptr(unsafe.Pointer(&data[122]))), kind, width,
				func(w *dyndbg.Watchpoint) {
					fires++
					fmt.Printf("trigger #%d at %#x\n", fires, w.Address)
				}, nil, true)
			if !res.OK() {
				return fmt.Errorf("add watchpoint: %w", res)
			}
			defer dyndbg.Remove(bp)

			stop := make(chan struct{})
			go func() {
				for {
					select {
					case <-stop:
						return
					default:
						for i := range data {
							data[i]++
						}
						time.Sleep(time.Millisecond)
					}
				}
			}()

			fmt.Println("watching... press any key to stop")
			waitForKeypress()
			close(stop)

			fmt.Printf("total triggers: %d, currently enabled: %d\n", fires, dyndbg.Count())
			dyndbg.Shutdown()
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 1, "watchpoint width in bytes (1, 2, 4, or 8)")
	cmd.Flags().StringVar(&kindFlag, "kind", "write", "watchpoint kind: execute, write, io-rdwr, rdwr")
	return cmd
}

func newCrashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crash",
		Short: "Install the crash collaborator and fault on purpose",
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.SetLevel(logrus.InfoLevel)
			crashdump.SetLogger(logrus.StandardLogger())

			if res := dyndbg.InstallCrashHandler(func(f crashdump.Fault) bool {
				fmt.Fprintf(os.Stderr, "caught %v, exiting\n", f.Signal)
				return false
			}); !res.OK() {
				return fmt.Errorf("install crash handler: %w", res)
			}

			crashdump.Guard(func() {
				var p *int
				*p = 1 // deliberate fault
			})
			return nil
		},
	}
}

func parseKind(s string) (dyndbg.Kind, error) {
	switch s {
	case "execute":
		return dyndbg.KindExecute, nil
	case "write":
		return dyndbg.KindWriteData, nil
	case "io-rdwr":
		return dyndbg.KindIORdWr, nil
	case "rdwr":
		return dyndbg.KindRdWrData, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

// waitForKeypress puts the terminal into raw mode just long enough to
// read one byte, the way terminal_host.go polls for interactive input.
func waitForKeypress() {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		var buf [1]byte
		os.Stdin.Read(buf[:])
		return
	}
	defer term.Restore(fd, oldState)

	var buf [1]byte
	os.Stdin.Read(buf[:])
}
