package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"faturas/internal/core"
	"faturas/internal/documents"
	"faturas/internal/log"
	"faturas/internal/selection"
)

var errAccountRequired = errors.New("--account is required")

// chooseAccount drives a fresh resolver through account choice and the
// months query.
func (a *app) chooseAccount(ctx context.Context, account string) (*selection.Resolver, []string, error) {
	r := selection.NewResolver(a.store, a.backend.Backend.Accounts, a.logger.WithComponent(log.ComponentSelection))
	if err := r.ChooseAccount(account); err != nil {
		return nil, nil, err
	}
	months, err := r.ComputeMonths(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return r, months, nil
}

func newMonthsCmd(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "months",
		Short: "List the billing months that have an invoice for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(account) == "" {
				return errAccountRequired
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			_, months, err := a.chooseAccount(cmd.Context(), account)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(months)
			}
			for _, m := range months {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account id")
	return cmd
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	var (
		account string
		month   string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the invoice PDF of one account and billing month",
		Long:  "Resolve the installation of --account and download the invoice for --month (e.g. JAN/24) into --out as {installationId}-{MM}-{YYYY}.pdf.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(account) == "" {
				return errAccountRequired
			}
			if strings.TrimSpace(month) == "" {
				return errors.New("--month is required")
			}
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, _, err := a.chooseAccount(ctx, account)
			if err != nil {
				return err
			}
			if err := r.ChooseMonth(month); err != nil {
				return err
			}
			key, err := r.Resolve()
			if err != nil {
				return err
			}

			sink := documents.FileSink{Dir: outDir}
			dl := documents.NewDownloader(a.backend.Backend.Documents, nil, a.logger)
			evt, err := dl.Download(ctx, documents.Request{
				Key:          key,
				AccountID:    account,
				BillingMonth: r.Status().Month,
			}, sink)
			if err != nil {
				return err
			}

			if opts.jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(downloadResult{
					Key:  evt.Key,
					Path: sink.Path(evt.Filename),
					Size: evt.Size,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", sink.Path(evt.Filename), evt.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account id")
	cmd.Flags().StringVar(&month, "month", "", "Billing month, e.g. JAN/24")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory the PDF is written to")
	return cmd
}

type downloadResult struct {
	Key  core.DocumentKey `json:"key"`
	Path string           `json:"path"`
	Size int              `json:"size"`
}
