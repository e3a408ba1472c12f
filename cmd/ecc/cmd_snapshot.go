package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ecc-analyzer/internal/layout"
	"github.com/danielpatrickdp/ecc-analyzer/internal/scenario"
	"github.com/danielpatrickdp/ecc-analyzer/internal/snapshot"
	"github.com/danielpatrickdp/ecc-analyzer/internal/system"
)

// #region snapshot
func (a *app) snapshotCmd() *cobra.Command {
	var sysName string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage versioned layout snapshots (stored in $ECC_DB)",
	}
	cmd.PersistentFlags().StringVar(&sysName, "system", "default", "system the snapshots belong to")

	var note string
	commit := &cobra.Command{
		Use:   "commit <layout>",
		Short: "Store a layout file as the new active version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Load(args[0])
			if err != nil {
				return err
			}
			return a.withStore(func(s *snapshot.Store) error {
				rec, err := s.Commit(sysName, root, note)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), rec.VersionID)
				return nil
			})
		},
	}
	commit.Flags().StringVar(&note, "note", "", "free-form note stored with the version")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(s *snapshot.Store) error {
				recs, err := s.List(sysName, limit)
				if err != nil {
					return err
				}
				active := ""
				if cur, err := s.Current(sysName); err == nil {
					active = cur.VersionID
				}
				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("", "Version", "Parent", "Created", "Hash", "Note")
				for _, r := range recs {
					mark := ""
					if r.VersionID == active {
						mark = "*"
					}
					t.Row(mark, r.VersionID, r.ParentID, r.CreatedAt.Format(time.RFC3339), short(r.LayoutHash), r.Note)
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.String())
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum versions to list")

	var format string
	show := &cobra.Command{
		Use:   "show [version-id]",
		Short: "Print a stored layout (the active one when no ID is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := layout.Format(strings.ToLower(format))
			if f != layout.FormatJSON && f != layout.FormatYAML {
				return fmt.Errorf("%w: %q", layout.ErrUnsupportedFormat, format)
			}
			return a.withStore(func(s *snapshot.Store) error {
				rec, err := a.record(s, sysName, args)
				if err != nil {
					return err
				}
				return layout.Encode(cmd.OutOrStdout(), f, rec.Config)
			})
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format: json or yaml")

	rollback := &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Make an earlier version of the system active again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *snapshot.Store) error {
				if err := s.Rollback(sysName, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s active: %s\n", sysName, args[0])
				return nil
			})
		},
	}

	var totalFIT float64
	analyze := &cobra.Command{
		Use:   "analyze [version-id]",
		Short: "Analyze a stored layout (the active one when no ID is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("total-fit") {
				totalFIT = a.cfg.TotalFIT
			}
			return a.withStore(func(s *snapshot.Store) error {
				_, rep, err := a.analyzeRecord(cmd, s, sysName, args, totalFIT)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), rep)
				return nil
			})
		},
	}
	analyze.Flags().Float64Var(&totalFIT, "total-fit", 0, "total system FIT rate (default $ECC_TOTAL_FIT)")

	var exportFIT float64
	var version string
	export := &cobra.Command{
		Use:   "export <fixture>",
		Short: "Freeze a stored layout and its current verdict into a scenario fixture",
		Long: `export analyzes the active layout (or --version) and writes a one-scenario
fixture expecting exactly that outcome. Run it through "ecc verify" later to
catch drift.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("total-fit") {
				exportFIT = a.cfg.TotalFIT
			}
			var ids []string
			if version != "" {
				ids = []string{version}
			}
			return a.withStore(func(s *snapshot.Store) error {
				rec, rep, err := a.analyzeRecord(cmd, s, sysName, ids, exportFIT)
				if err != nil {
					return err
				}
				fx := &scenario.Fixture{
					Description: fmt.Sprintf("%s version %s", sysName, rec.VersionID),
					Scenarios:   []scenario.Scenario{scenario.Baseline(sysName, exportFIT, rec.Config, rep.Metrics)},
				}
				if err := scenario.SaveFixture(args[0], fx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", args[0], rep.Metrics.Verdict)
				return nil
			})
		},
	}
	export.Flags().Float64Var(&exportFIT, "total-fit", 0, "total system FIT rate (default $ECC_TOTAL_FIT)")
	export.Flags().StringVar(&version, "version", "", "version to export (default the active one)")

	cmd.AddCommand(commit, list, show, rollback, analyze, export)
	return cmd
}

// #endregion snapshot

// #region helpers
func (a *app) withStore(fn func(*snapshot.Store) error) error {
	s, err := snapshot.NewStore(a.cfg.DBPath, snapshot.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (a *app) record(s *snapshot.Store, sysName string, args []string) (snapshot.Record, error) {
	if len(args) == 1 {
		return s.Version(args[0])
	}
	return s.Current(sysName)
}

// analyzeRecord loads a stored version, analyzes it and logs the provenance.
func (a *app) analyzeRecord(cmd *cobra.Command, s *snapshot.Store, sysName string, args []string, totalFIT float64) (snapshot.Record, system.Report, error) {
	rec, err := a.record(s, sysName, args)
	if err != nil {
		return snapshot.Record{}, system.Report{}, err
	}
	root, err := rec.Block()
	if err != nil {
		return snapshot.Record{}, system.Report{}, err
	}
	sys := system.New(sysName, totalFIT, system.WithLogger(a.log))
	if err := sys.Configure(root); err != nil {
		return snapshot.Record{}, system.Report{}, err
	}
	rep, err := sys.Analyze()
	if err != nil {
		return snapshot.Record{}, system.Report{}, err
	}
	if _, err := a.logReport(cmd, rep, root, "cli", rec.VersionID); err != nil {
		return snapshot.Record{}, system.Report{}, err
	}
	return rec, rep, nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// #endregion helpers
