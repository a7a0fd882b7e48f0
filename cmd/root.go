package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/medzoom/internal/ui"
	"github.com/BioHazard786/medzoom/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "medzoom",
	Short: "Room signaling and session coordinator for WebRTC meetings",
	Long: `medzoom runs the signaling side of a browser video meeting. It tracks who is in
which six-digit room, relays WebRTC offers, answers and ICE candidates between
participants, elects a host for every room and enforces host-only actions such as
mute-all and kick. Media never passes through it.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
