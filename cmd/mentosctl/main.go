// Command mentosctl is a demo/integration driver for the kernel core:
// each subcommand exercises one of C1-C8 standalone, the way the teacher
// kernel's main.go boots each subsystem in sequence before handing off to
// userspace — except here there is no userspace to hand off to, so each
// subcommand just runs its subsystem to completion and reports what
// happened.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mentos/internal/klog"
)

var logLevel string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mentosctl",
		Short:         "Drive the MentOS kernel core's subsystems from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level: debug, info, warn, error")
	root.AddCommand(
		newTickCmd(),
		newMsgqCmd(),
		newPipeCmd(),
		newAtaCmd(),
		newBankersCmd(),
	)
	return root
}

func rootLogger(component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return klog.New(component, os.Stderr).Level(lvl)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mentosctl:", err)
		os.Exit(1)
	}
}
