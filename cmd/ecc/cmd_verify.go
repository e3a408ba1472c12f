package main

import (
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
	"github.com/danielpatrickdp/ecc-analyzer/internal/scenario"
)

func (a *app) verifyCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "verify <fixture>",
		Short: "Run a scenario fixture and compare every verdict with its expectation",
		Long: `verify runs each scenario of a JSON or YAML fixture and prints a
comparison table. It exits 1 when any scenario diverges or fails to run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Workers
			}
			fx, err := scenario.LoadFixture(args[0])
			if err != nil {
				return err
			}
			results, err := scenario.RunAll(cmd.Context(), fx.Scenarios, workers)
			if err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					a.log.Warn("scenario failed", "scenario", r.Scenario, "error", r.Err)
					continue
				}
				logging.LogDecision(cmd.Context(), a.log, logging.ProvenanceEntry{
					System:      r.Scenario,
					LayoutHash:  r.LayoutHash,
					TriggerType: "verify",
					SPFM:        r.Metrics.SPFM,
					LFM:         r.Metrics.LFM,
					ResidualFIT: r.Metrics.ResidualFIT,
					LatentFIT:   r.Metrics.LatentFIT,
					Verdict:     r.Metrics.Verdict,
				})
			}
			if s := scenario.Report(cmd.OutOrStdout(), results); s.Diverge+s.Errors > 0 {
				return errDiverged
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "scenarios analyzed in parallel (default $ECC_WORKERS)")
	return cmd
}
