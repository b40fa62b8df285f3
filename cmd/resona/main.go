package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/resona-io/resona/internal/interfaces/cli/device"
	"github.com/resona-io/resona/internal/interfaces/cli/migrate"
	"github.com/resona-io/resona/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resona",
		Short: "Resona - motion-triggered music orchestrator",
		Long:  `Resona turns motion reported by battery-powered sensors into music playback sessions, with automatic pause once a room goes quiet.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		device.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
