// Package cmd holds the sidrip command tree. Commands are thin: they
// parse flags, call into the pipeline packages and present the
// results; every algorithm lives below internal/.
package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sidrip/internal/sidrip/log"
)

var rootCmd = &cobra.Command{
	Use:   "sidrip",
	Short: "Reverse-engineer C64 SID music binaries into editable SF2 projects",
	Long: `sidrip identifies the music driver inside a SID binary, recovers its
instrument tables and note sequences, and transcodes them into the
structured SF2 project format. A companion verifier scores the
conversion by comparing chip register write logs frame by frame.`,
	Example: `
# Identify the player driver in a file
sidrip identify tune.sid

# Convert a file and write tune.sf2
sidrip convert tune.sid

# Score a conversion against the original register log
sidrip verify original.log converted.log
  `,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug logging")
}

// Execute runs the command tree. On a terminal it goes through fang
// for the styled help and errors; piped output gets plain cobra so
// nothing re-renders what scripts consume.
func Execute() {
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
