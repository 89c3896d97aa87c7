package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/internal/infrastructure/repositories"
	"lenslink/internal/infrastructure/repositories/file"
	"lenslink/pkg/utils"
	"lenslink/pkg/validation"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [YYYY-MM-DD]",
		Short: "Print stored scan records",
		Long:  "Without a date, prints the recent window most recent first. With a date, prints that day's bucket in file order.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}

			store, err := file.NewHistoryStore(cfg.HistoryPath(), cfg.Storage.HistoryWindow, zap.NewNop().Sugar())
			if err != nil {
				return err
			}

			var records []domain.ScanRecord
			if len(args) == 1 {
				if !utils.ValidDayKey(args[0]) {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[0])
				}
				records, err = store.Day(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("reading history: %w", err)
				}
			} else {
				if err := store.Load(cmd.Context()); err != nil {
					return fmt.Errorf("loading history: %w", err)
				}
				records = store.Recent()
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeRecords(cmd.OutOrStdout(), records)
		},
	}
}

func newPairsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs <stableId>",
		Short: "Print the devices paired with a stable id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateStableID(args[0]); err != nil {
				return err
			}

			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}

			factory, err := repositories.NewRepositoryFactory(cfg, zap.NewNop().Sugar())
			if err != nil {
				return err
			}
			defer factory.Close()

			pairs, err := factory.CreatePairingStore()
			if err != nil {
				return err
			}

			edges, err := pairs.EdgesOf(context.Background(), domain.StableID(args[0]))
			if err != nil {
				return fmt.Errorf("reading pairings: %w", err)
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), edges)
			}
			if len(edges) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no paired devices\n", args[0])
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, edge := range edges {
				fmt.Fprintf(tw, "%s\t%s\n", edge.ID, edge.Name)
			}
			return tw.Flush()
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRecords(w io.Writer, records []domain.ScanRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "no records")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tMODEL\tFOLLOW-UPS\tANSWER")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%d\t%s\n",
			r.ID,
			r.TimestampDisplay,
			r.ProviderName,
			r.ModelName,
			len(r.Thread),
			oneLine(r.Answer, 60),
		)
	}
	return tw.Flush()
}

func oneLine(s string, max int) string {
	return utils.TruncateString(strings.Join(strings.Fields(utils.SanitizeString(s)), " "), max)
}
