// voiceline: real-time voice AI agent for phone calls.
// Bridges telephony media streams to streaming STT, LLM generation
// with tools, and streaming TTS.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var (
	cfgFile  string
	logLevel string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voiceline",
		Short:         "Voiceline is a real-time voice AI agent for phone calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "voiceline.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
