package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ecc-analyzer/internal/asil"
	"github.com/danielpatrickdp/ecc-analyzer/internal/block"
	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

// #region analyze
func (a *app) analyzeCmd() *cobra.Command {
	var (
		totalFIT float64
		name     string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <layout>",
		Short: "Compute SPFM, LFM and the ASIL verdict for a layout file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("total-fit") {
				totalFIT = a.cfg.TotalFIT
			}
			sys, err := a.loadSystem(name, totalFIT, args[0])
			if err != nil {
				return err
			}
			rep, err := sys.Analyze()
			if err != nil {
				return err
			}
			hash, err := a.logReport(cmd, rep, sys.Layout(), "cli", "")
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep, hash)
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().Float64Var(&totalFIT, "total-fit", 0, "total system FIT rate (default $ECC_TOTAL_FIT)")
	cmd.Flags().StringVar(&name, "system", "", "system name (default layout file name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// #endregion analyze

// #region trace
func (a *app) traceCmd() *cobra.Command {
	var totalFIT float64
	cmd := &cobra.Command{
		Use:   "trace <layout>",
		Short: "Show the rate maps after every block of a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("total-fit") {
				totalFIT = a.cfg.TotalFIT
			}
			sys, err := a.loadSystem("", totalFIT, args[0])
			if err != nil {
				return err
			}
			rec := &block.Recorder{}
			rep, err := sys.Trace(rec)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, traceTable(rec.Events))
			fmt.Fprintln(w)
			printReport(w, rep)
			return nil
		},
	}
	cmd.Flags().Float64Var(&totalFIT, "total-fit", 0, "total system FIT rate (default $ECC_TOTAL_FIT)")
	return cmd
}

func traceTable(events []block.Event) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Kind", "Name", "Residual", "Latent", "Owns")
	for _, e := range events {
		var owned []string
		for p, owner := range e.OutPorts {
			if owner == e.ID {
				owned = append(owned, p.String())
			}
		}
		sort.Strings(owned)
		t.Row(e.ID, string(e.Kind), e.Block.Name(),
			e.ResidualOut.Format(), e.LatentOut.Format(), strings.Join(owned, " "))
	}
	return t.String()
}

// #endregion trace

// #region convert
func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a layout file in another format (by extension)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Load(args[0])
			if err != nil {
				return err
			}
			if err := layout.Save(args[1], root); err != nil {
				return err
			}
			a.log.Info("layout converted", "from", args[0], "to", args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
}

// #endregion convert

// #region helpers
func (a *app) loadSystem(name string, totalFIT float64, path string) (*system.System, error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return system.FromFile(name, totalFIT, path, system.WithLogger(a.log))
}

// logReport writes the provenance line for rep and returns the layout hash.
func (a *app) logReport(cmd *cobra.Command, rep system.Report, root block.Block, trigger, versionID string) (string, error) {
	hash, err := logging.HashLayout(root.Config())
	if err != nil {
		return "", err
	}
	logging.LogDecision(cmd.Context(), a.log, logging.ProvenanceEntry{
		System:      rep.System,
		LayoutHash:  hash,
		VersionID:   versionID,
		TriggerType: trigger,
		SPFM:        rep.Metrics.SPFM,
		LFM:         rep.Metrics.LFM,
		ResidualFIT: rep.Metrics.ResidualFIT,
		LatentFIT:   rep.Metrics.LatentFIT,
		Verdict:     rep.Metrics.Verdict,
	})
	return hash, nil
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(12)
	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func verdictStyle(v string) lipgloss.Style {
	switch v {
	case "ASIL D", "ASIL C":
		return passStyle
	case asil.NonCompliant:
		return failStyle
	default:
		return warnStyle
	}
}

func printReport(w io.Writer, rep system.Report) {
	line := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
	}
	m := rep.Metrics
	line("System", rep.System)
	line("Total FIT", fmt.Sprintf("%.2f", rep.TotalFIT))
	line("Residual", fmt.Sprintf("%.2f  %s", m.ResidualFIT, rep.Residual.Format()))
	line("Latent", fmt.Sprintf("%.2f  %s", m.LatentFIT, rep.Latent.Format()))
	line("SPFM", fmt.Sprintf("%.6f", m.SPFM))
	line("LFM", fmt.Sprintf("%.6f", m.LFM))
	line("Verdict", verdictStyle(m.Verdict).Render(m.Verdict))
}

type jsonReport struct {
	System     string             `json:"system"`
	TotalFIT   float64            `json:"total_fit"`
	LayoutHash string             `json:"layout_hash"`
	Residual   map[string]float64 `json:"residual"`
	Latent     map[string]float64 `json:"latent"`
	asil.Metrics
}

func writeJSON(w io.Writer, rep system.Report, hash string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		System:     rep.System,
		TotalFIT:   rep.TotalFIT,
		LayoutHash: hash,
		Residual:   rep.Residual.Names(),
		Latent:     rep.Latent.Names(),
		Metrics:    rep.Metrics,
	})
}

// #endregion helpers
