package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"invoicebot/internal/bootstrap"
	"invoicebot/internal/config"
	"invoicebot/internal/logging"
	"invoicebot/utils"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.Load(path, true)
	}
	return config.LoadConfig()
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep now and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			deps, err := bootstrap.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			svc, err := bootstrap.NewServices(ctx, deps)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Tasks.Close(ctx) }()

			res, sweepErr := svc.Reminders.ScanOnce(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			return sweepErr
		},
	}
}

func ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "List invoices that already received an automatic reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ledger, closeFn, err := bootstrap.OpenLedger(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := ledger.Load(ctx); err != nil {
				return err
			}
			entries, err := ledger.Entries(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ledger is empty")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INVOICE\tSENT AT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.InvoiceID, e.SentAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [phone...]",
		Short: "Show how phone numbers are canonicalised and whether they are accepted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INPUT\tFORMATTED\tVALID")
			for _, raw := range args {
				formatted := utils.FormatPhone(raw)
				fmt.Fprintf(tw, "%s\t%s\t%t\n", raw, formatted, utils.IsValidPhone(formatted))
			}
			return tw.Flush()
		},
	}
}
