package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

const dateLayout = "2006-01-02"

func newRootCmd(open opener) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fintrackctl",
		Short:         "Manage the fintrack ledger from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (overrides FINTRACK_CONFIG)")

	// withEnv opens the ledger for the duration of one command.
	withEnv := func(run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context(), configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.cleanup()
			return run(cmd, e, args)
		}
	}

	root.AddCommand(
		newListCmd(withEnv),
		newAddCmd(withEnv),
		newRemoveCmd(withEnv),
		newSummaryCmd(withEnv),
		newAnalyticsCmd(withEnv),
		newAdviceCmd(withEnv),
		newExportCmd(withEnv),
	)
	return root
}

type envRunner func(run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error

func newListCmd(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			txs := core.SortByDateDesc(e.txs.List())
			out := cmd.OutOrStdout()
			if len(txs) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tCATEGORY\tNOTE")
			for _, tx := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					tx.ID,
					tx.Date.In(e.location).Format(dateLayout),
					core.FormatSigned(tx, e.currency),
					tx.Category,
					tx.Note)
			}
			return tw.Flush()
		}),
	}
}

func newAddCmd(withEnv envRunner) *cobra.Command {
	var typ, amount, category, date, note string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction",
		Example: `  fintrackctl add --amount 1200 --category Еда --note обед
  fintrackctl add --type income --amount 85000 --category Зарплата --date 2025-06-01`,
		Args: cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			d := core.Draft{
				Type:     core.TxType(strings.ToLower(strings.TrimSpace(typ))),
				Category: category,
				Note:     note,
			}
			if v, err := core.ParseAmount(amount); err == nil {
				d.Amount = &v
			}
			if date != "" {
				t, err := time.ParseInLocation(dateLayout, date, e.location)
				if err != nil {
					return fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
				}
				d.Date = t
			}

			tx, err := e.txs.Create(cmd.Context(), d)
			if errors.Is(err, core.ErrValidation) {
				return fmt.Errorf("transaction rejected: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: %s %s\n", tx.ID, core.FormatSigned(tx, e.currency), tx.Category)
			return nil
		}),
	}

	cmd.Flags().StringVar(&typ, "type", string(core.Expense), "income or expense")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 1200 or 12,50")
	cmd.Flags().StringVar(&category, "category", "", "category label")
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	return cmd
}

func newRemoveCmd(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a transaction by id",
		Args:    cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			removed, err := e.txs.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("transaction %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		}),
	}
}

func newSummaryCmd(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show balance, income and expense totals",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			sum := core.Summarize(e.txs.List())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Balance\t%s\n", core.FormatAmount(sum.Balance, e.currency))
			fmt.Fprintf(tw, "Income\t%s\n", core.FormatAmount(sum.TotalIncome, e.currency))
			fmt.Fprintf(tw, "Expense\t%s\n", core.FormatAmount(sum.TotalExpense, e.currency))
			return tw.Flush()
		}),
	}
}

func newAnalyticsCmd(withEnv envRunner) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show expenses by category and the income/expense timeline",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			g := core.ParseGranularity(period)
			txs := e.txs.List()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Period: %s\n\nExpenses by category:\n", g)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range core.ByCategory(txs) {
				fmt.Fprintf(tw, "  %s\t%s\n", c.Name, core.FormatAmount(c.Value, e.currency))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out, "\nTimeline:")
			tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, b := range core.TimelineWith(txs, g, core.RussianCalendar(e.location)) {
				fmt.Fprintf(tw, "  %s\t+%s\t-%s\n", b.Key,
					core.FormatAmount(b.Income, e.currency),
					core.FormatAmount(b.Expense, e.currency))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&period, "period", string(core.Month), "week, month or year")
	return cmd
}

func newAdviceCmd(withEnv envRunner) *cobra.Command {
	var plain bool
	var width int

	cmd := &cobra.Command{
		Use:   "advice",
		Short: "Ask the advisor for tips on the current ledger",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			txs := e.txs.List()
			md := adviceMarkdown(e.advisor.Advise(cmd.Context(), txs, core.Summarize(txs)))
			if plain {
				_, err := io.WriteString(cmd.OutOrStdout(), md)
				return err
			}
			rendered, err := renderMarkdown(md, width)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		}),
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	cmd.Flags().IntVar(&width, "width", 80, "word wrap width")
	return cmd
}

func newExportCmd(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Inspect the Google Sheets export",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Compare the exported sheet with the ledger",
		Long:  "Lists ledger transactions missing from the sheet, rows with no ledger transaction and rows whose fields differ. Exits non-zero when they disagree.",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			if e.sheet == nil {
				return errors.New("sheet export is not configured")
			}
			lister, err := e.sheet(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := lister.ListTransactions(cmd.Context())
			if err != nil {
				return fmt.Errorf("read sheet: %w", err)
			}

			txs := e.txs.List()
			diff := sheets.Compare(txs, rows)
			out := cmd.OutOrStdout()
			if diff.InSync() {
				fmt.Fprintf(out, "Sheet matches the ledger (%d transactions).\n", len(txs))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tDETAIL")
			for _, tx := range diff.Missing {
				fmt.Fprintf(tw, "%s\tmissing\t%s %s\n", tx.ID, core.FormatSigned(tx, e.currency), tx.Category)
			}
			for _, row := range diff.Extra {
				fmt.Fprintf(tw, "%s\textra\t%s %s\n", row.ID, core.FormatSigned(row, e.currency), row.Category)
			}
			for _, m := range diff.Changed {
				fmt.Fprintf(tw, "%s\tchanged\t%s\n", m.ID, strings.Join(m.Fields, ", "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return fmt.Errorf("sheet differs from ledger: %d missing, %d extra, %d changed",
				len(diff.Missing), len(diff.Extra), len(diff.Changed))
		}),
	})
	return cmd
}

func adviceMarkdown(tips []string) string {
	var b strings.Builder
	b.WriteString("# Советы\n\n")
	if len(tips) == 0 {
		b.WriteString("Советов пока нет.\n")
		return b.String()
	}
	for i, tip := range tips {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tip)
	}
	return b.String()
}

func renderMarkdown(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
