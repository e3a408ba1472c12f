package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
	"github.com/danielpatrickdp/ecc-analyzer/internal/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var totalFIT float64
	cmd := &cobra.Command{
		Use:   "watch <layout>",
		Short: "Re-analyze a layout file every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("total-fit") {
				totalFIT = a.cfg.TotalFIT
			}
			sys, err := a.loadSystem("", totalFIT, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			report := func(rep system.Report, err error) {
				if err != nil {
					fmt.Fprintf(w, "reload failed, keeping previous layout: %v\n", err)
					return
				}
				if _, err := a.logReport(cmd, rep, sys.Layout(), "watch", ""); err != nil {
					a.log.Warn("provenance failed", "error", err)
				}
				printReport(w, rep)
				fmt.Fprintln(w)
			}
			report(sys.Analyze())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch.Run(ctx, sys, args[0], watch.DefaultOptions(), report)
		},
	}
	cmd.Flags().Float64Var(&totalFIT, "total-fit", 0, "total system FIT rate (default $ECC_TOTAL_FIT)")
	return cmd
}
