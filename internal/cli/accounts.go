package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type accountLine struct {
	AccountID      string `json:"accountId"`
	InstallationID string `json:"installationId,omitempty"`
}

func newAccountsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts of the loaded records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.store.Snapshot()
			installations := snap.Installations()
			lines := make([]accountLine, 0, snap.Accounts().Len())
			for _, id := range snap.Accounts().IDs() {
				inst, _ := installations.Lookup(id)
				lines = append(lines, accountLine{AccountID: id, InstallationID: inst})
			}

			if opts.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(lines)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tINSTALLATION")
			for _, l := range lines {
				inst := l.InstallationID
				if inst == "" {
					inst = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\n", l.AccountID, inst)
			}
			return tw.Flush()
		},
	}
}
