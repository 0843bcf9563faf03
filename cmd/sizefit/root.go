package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harliandi/sizefit/internal/config"
)

// newRootCmd builds the command tree. Defaults for tolerance, output format
// and log level come from sizefit.toml and the environment.
func newRootCmd() *cobra.Command {
	var verbose bool
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:           "sizefit",
		Short:         "sizefit - resize images to a target file size or pixel dimensions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded

			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			level := cfg.LogLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every trial encode")
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	root.AddCommand(newFitCmd(cfg), newResizeCmd(cfg))
	return root
}
