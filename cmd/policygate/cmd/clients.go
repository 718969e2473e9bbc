package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koman-maciej/insurance/cmd/policygate/cmd/cmdutil"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Inspect the registered OAuth2 clients",
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered clients and their grant types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := cmdutil.NewClientStore(cfg)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT ID\tSECRET\tGRANT TYPES")
		for _, c := range store.Clients() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, maskSecret(c.Secret), strings.Join(c.GrantTypes, ","))
		}
		return w.Flush()
	},
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-2)
}

func init() {
	clientsCmd.AddCommand(clientsListCmd)
}
