package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"salesmigrate/internal/catalog"
	"salesmigrate/internal/connectors"
	"salesmigrate/internal/listener"
	"salesmigrate/internal/pipeline"
	"salesmigrate/internal/util"
)

func salesImportCommand(a *app) *cobra.Command {
	var (
		opts          pipeline.RunOptions
		latestFetched bool
	)
	cmd := &cobra.Command{
		Use:   "sales:import",
		Short: "Replace previously migrated sales with the invoices of one report file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if latestFetched && opts.Input == "" {
				reports, err := db.ListFetchedReports(ctx, 1)
				if err != nil {
					return err
				}
				if len(reports) == 0 {
					return errors.New("no fetched reports; run mail:fetch first")
				}
				opts.Input = reports[0].Path
			}
			if strings.TrimSpace(opts.Input) == "" {
				return errors.New("--input is required")
			}

			stats, err := pipeline.NewMigrationService(db, a.cfg, a.log).Run(ctx, opts)
			if err != nil {
				return err
			}
			mode := "import"
			if opts.DryRun {
				mode = "dry run"
			}
			fmt.Printf("%s done invoices=%d sales=%d items=%d unmatched=%d skipped=%d dropped=%d total=%s\n",
				mode, stats.Invoices, stats.Sales, stats.SaleItems, stats.Unmatched, stats.Skipped, stats.Dropped,
				stats.TotalAmount.StringFixed(2))
			if path := util.FirstNonEmpty(opts.ReportPath, a.cfg.ReportPath); path != "" {
				fmt.Printf("report written to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Input, "input", "", "report file (.xlsx .xls .csv .html .pdf .eml)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "run every stage without writing to the database")
	cmd.Flags().BoolVar(&opts.PurgeAll, "purge-all", false, "delete all sales, not only earlier migrated ones")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "report output path (overrides REPORT_PATH)")
	cmd.Flags().StringVar(&opts.UnmatchedPath, "unmatched", "", "write unmatched lines to this xlsx")
	cmd.Flags().BoolVar(&latestFetched, "latest-fetched", false, "use the most recent report stored by mail:fetch")
	return cmd
}

func salesListCommand(a *app) *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "sales:list",
		Short: "List migrated sales",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			sales, err := db.ListSales(ctx, !all)
			if err != nil {
				return err
			}
			for i, s := range sales {
				if limit > 0 && i >= limit {
					fmt.Printf("... %d more\n", len(sales)-limit)
					break
				}
				fmt.Printf("bill=%d date=%s source=%s items=%d total=%s historical=%v\n",
					s.BillNo, s.Date.Format("2006-01-02"), s.SourceInvoiceNo, len(s.Items), s.GrandTotal.StringFixed(2), s.IsHistorical)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include live sales")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to print (0 for all)")
	return cmd
}

func catalogImportCommand(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "catalog:import",
		Short: "Load products and variants from an .xlsx or .csv sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("--input is required")
			}
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			names := pipeline.NewNormalizer(a.cfg.Profile.NameFixes)
			res, err := catalog.NewImporter(db, names, a.log).ImportFile(ctx, input)
			if err != nil {
				return err
			}
			fmt.Printf("catalog import done rows=%d categories=%d products=%d variants=%d skipped=%d\n",
				res.Rows, res.Categories, res.Products, res.Variants, res.Skipped)
			for _, msg := range res.Errors {
				fmt.Printf("  %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "catalog sheet path")
	return cmd
}

func catalogListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog:list",
		Short: "Print the catalog as the reconciler sees it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			products, err := db.ListProducts(ctx)
			if err != nil {
				return err
			}
			for _, p := range products {
				codes := []string{}
				for _, v := range p.Variants {
					if v.Code != "" {
						codes = append(codes, v.Code)
					}
				}
				fmt.Printf("%d\t%s\tvariants=%d\tcodes=%s\n", p.ID, p.Name, len(p.Variants), strings.Join(codes, ","))
			}
			fmt.Printf("%d products\n", len(products))
			return nil
		},
	}
}

func adminEnsureCommand(a *app) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "admin:ensure",
		Short: "Create (or promote) the admin user migrated sales are attributed to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := db.EnsureAdminUser(ctx, username)
			if err != nil {
				return err
			}
			fmt.Printf("admin user id=%d username=%s\n", user.ID, user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "admin username")
	return cmd
}

func mailFetchCommand(a *app) *cobra.Command {
	var (
		provider string
		label    string
		max      int
	)
	cmd := &cobra.Command{
		Use:   "mail:fetch",
		Short: "Download mailed sales reports into INBOX_DIR",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			conn, err := listener.NewMailConnector(ctx, a.cfg, provider)
			if err != nil {
				return err
			}
			fetch := connectors.NewReportFetchService(db, conn, a.cfg.InboxDir, a.cfg.Profile, a.log)
			res, err := fetch.FetchAndStore(ctx, label, max)
			if err != nil {
				return err
			}
			fmt.Printf("mail fetch done provider=%s messages=%d attachments=%d stored=%d skipped=%d\n",
				provider, res.Fetched, res.Attachments, res.Stored, res.Skipped)
			for _, r := range res.Reports {
				fmt.Printf("  %s -> %s (score %.2f)\n", r.FileName, r.Path, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "imap", "gmail|imap")
	cmd.Flags().StringVar(&label, "label", "INBOX", "gmail label or imap folder")
	cmd.Flags().IntVar(&max, "max", 50, "max messages")
	return cmd
}

func mailListCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "mail:list",
		Short: "List reports stored by mail:fetch, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			reports, err := db.ListFetchedReports(ctx, limit)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Printf("%d\t%s\t%s\t%s\t%s\n", r.ID, r.Provider, r.ReceivedAt, r.FileName, r.Path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}

func mailWatchCommand(a *app) *cobra.Command {
	var once, replaceHistory bool
	cmd := &cobra.Command{
		Use:   "mail:watch",
		Short: "Poll the mailbox for sales reports (MAIL_WATCH_* settings)",
		Long: `Poll the mailbox every MAIL_WATCH_INTERVAL_SEC and store new sales reports.

With MAIL_WATCH_AUTO_IMPORT=true each cycle also migrates the newest stored
report. A migration deletes every earlier migrated sale before loading, so
with incremental daily exports only the latest day survives. Auto import
therefore refuses to run unless MAIL_WATCH_REPLACE_HISTORY=true or
--replace-history is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if replaceHistory {
				a.cfg.MailWatchReplaceHistory = true
			}
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := listener.NewService(db, a.cfg, a.log)
			if !once {
				return svc.Run(ctx)
			}
			res, err := svc.RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("watch cycle done messages=%d stored=%d\n", res.Fetch.Fetched, res.Fetch.Stored)
			if res.Imported != nil {
				fmt.Printf("imported %s sales=%d unmatched=%d\n", res.Imported.Source, res.Imported.Sales, res.Imported.Unmatched)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	cmd.Flags().BoolVar(&replaceHistory, "replace-history", false, "allow auto import to replace earlier migrated sales")
	return cmd
}

func reportInspectCommand(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "report:inspect",
		Short: "Classify and assemble a report file without touching the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("--input is required")
			}
			grid, err := pipeline.ReadGrid(input)
			if err != nil {
				return err
			}
			detected := pipeline.DetectSalesReport(grid, a.cfg.Profile)
			invoices, stats := pipeline.NewAssembler(a.cfg.Profile, a.log).Assemble(grid)

			fmt.Printf("rows=%d score=%.2f (%s) headers=%d item_tables=%d items=%d totals=%d\n",
				stats.Rows, detected.Score, detected.Reason, detected.Headers, detected.ItemTables, detected.Items, detected.Totals)
			fmt.Printf("invoices=%d dropped=%d forced_closes=%d skipped_lines=%d\n",
				stats.Invoices, stats.Dropped, stats.Forced, stats.SkippedLines)
			for _, inv := range invoices {
				date := "?"
				if !inv.Date.IsZero() {
					date = inv.Date.Format("2006-01-02")
				}
				fmt.Printf("  invoice %s date=%s row=%d items=%d\n", inv.Number, date, inv.StartRow+1, len(inv.Items))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "report file")
	return cmd
}

func statusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when sales and catalog were last imported",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			for _, key := range []string{"sales.last_import", "catalog.last_import"} {
				value, err := db.GetMetadata(ctx, key)
				if err != nil {
					return err
				}
				shown := "never"
				if value != nil {
					shown = *value
				}
				fmt.Printf("%s=%s\n", key, shown)
			}
			return nil
		},
	}
}
