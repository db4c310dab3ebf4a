package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"faturas/internal/core"
	"faturas/internal/dashboard"
	"faturas/internal/export"
)

func newSeriesCmd(opts *rootOptions) *cobra.Command {
	var (
		account string
		xlsxOut string
	)

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the energy and monetary series",
		Long:  "Print the energy (kWh) and monetary (R$) series for one account, or for every invoice when --account is omitted or \"all\".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := dashboard.Build(a.store.Snapshot(), core.ParseSelector(account))
			if err != nil {
				return err
			}

			if xlsxOut != "" {
				data, err := export.Workbook(view)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxOut, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", xlsxOut, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", xlsxOut)
			}

			if opts.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printSeries(cmd, view)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account id, or \"all\"")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "Also write the series to this .xlsx file")
	return cmd
}

func printSeries(cmd *cobra.Command, v dashboard.View) error {
	out := cmd.OutOrStdout()
	st := newStyles(out)
	fmt.Fprintf(out, "%s %s\n\n",
		st.title.Render(fmt.Sprintf("Selector: %s", v.Selector)),
		st.dim.Render(fmt.Sprintf("(%d records)", v.Records)))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tCONSUMPTION\tCOMPENSATION\t")
	for _, p := range v.Energy {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", p.Month, core.FormatKWh(p.Consumption), core.FormatKWh(p.Compensation))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t\n", core.FormatKWh(v.Totals.Consumption), core.FormatKWh(v.Totals.Compensation))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)

	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tTOTAL VALUE\tSAVINGS\t")
	for _, p := range v.Monetary {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", p.Month, core.FormatReais(p.TotalValue), core.FormatReais(p.Savings))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t\n", core.FormatReais(v.Totals.TotalValue), core.FormatReais(v.Totals.Savings))
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := v.Excluded(); n > 0 {
		fmt.Fprintf(out, "\n%s\n", st.warn.Render(fmt.Sprintf("%d record(s) excluded:", n)))
		for _, e := range append(append([]dashboard.Exclusion(nil), v.EnergyExcluded...), v.MonetaryExcluded...) {
			fmt.Fprintf(out, "  #%d %s %s %s: %s\n", e.Index, e.AccountID, e.BillingMonth, e.Field, e.Reason)
		}
	}
	return nil
}
