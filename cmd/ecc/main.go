package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ecc-analyzer/internal/config"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
)

// errDiverged makes verify exit non-zero without printing a second message.
var errDiverged = errors.New("scenarios diverged")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errDiverged) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// #region root
// app carries the state shared by every subcommand once the root's
// PersistentPreRunE has run.
type app struct {
	envFile string
	cfg     config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ecc",
		Short: "Fault-rate analysis of memory error-correction architectures",
		Long: `ecc builds a block diagram of an ECC architecture from a JSON or YAML
layout, propagates fault rates through it and reports the ISO 26262
hardware metrics (SPFM, LFM) with the achieved ASIL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if a.envFile != "" {
				files = append(files, a.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to load (default .env)")

	root.AddCommand(
		a.analyzeCmd(),
		a.traceCmd(),
		a.convertCmd(),
		a.verifyCmd(),
		a.snapshotCmd(),
		a.serveCmd(),
		a.watchCmd(),
	)
	return root
}

// #endregion root
